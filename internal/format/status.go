package format

// Color is a badge background/foreground class pair.
type Color struct {
	Bg   string
	Text string
}

// Status is how a status value is displayed.
type Status struct {
	Label string
	Color Color
}

var (
	green  = Color{Bg: "bg-green", Text: "text-green"}
	yellow = Color{Bg: "bg-yellow", Text: "text-yellow"}
	red    = Color{Bg: "bg-red", Text: "text-red"}
	blue   = Color{Bg: "bg-blue", Text: "text-blue"}
	purple = Color{Bg: "bg-purple", Text: "text-purple"}

	// Neutral is used for statuses without a dedicated style.
	Neutral = Color{Bg: "bg-gray", Text: "text-gray"}
)

var statuses = map[string]Status{
	"active":    {"Идэвхтэй", green},
	"inactive":  {"Идэвхгүй", purple},
	"pending":   {"Хүлээгдэж буй", yellow},
	"suspended": {"Түр зогсоосон", red},
	"expelled":  {"Хасагдсан", red},
	"expired":   {"Хугацаа дууссан", red},
	"paid":      {"Төлөгдсөн", green},
	"overdue":   {"Хугацаа хэтэрсэн", red},
	"waived":    {"Чөлөөлөгдсөн", Neutral},
	"upcoming":  {"Удахгүй болох", blue},
	"ongoing":   {"Явагдаж буй", green},
	"completed": {"Дууссан", purple},
	"cancelled": {"Цуцлагдсан", red},
	"draft":     {"Ноорог", Neutral},
}

// StatusDisplay returns the label and colours for a status value. Unknown
// values keep their raw text and get the neutral colours.
func StatusDisplay(status string) Status {
	if s, ok := statuses[status]; ok {
		return s
	}
	label := status
	if label == "" {
		label = "-"
	}
	return Status{Label: label, Color: Neutral}
}

// StatusLabel is StatusDisplay(status).Label.
func StatusLabel(status string) string {
	return StatusDisplay(status).Label
}

var levels = map[string]string{
	"national": "Үндэсний",
	"province": "Аймаг, нийслэл",
	"district": "Сум, дүүрэг",
	"branch":   "Салбар",
}

// LevelLabel names an organization hierarchy level.
func LevelLabel(level string) string {
	if l, ok := levels[level]; ok {
		return l
	}
	return level
}

var roles = map[string]string{
	"national_admin": "Үндэсний админ",
	"province_admin": "Аймгийн админ",
	"district_admin": "Дүүргийн админ",
	"member":         "Гишүүн",
}

func RoleLabel(role string) string {
	if l, ok := roles[role]; ok {
		return l
	}
	return role
}
