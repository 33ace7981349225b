package web

import (
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
)

const (
	minFeeYear = 2020
	maxFeeYear = 2100

	// datetime-local input value
	inputDateTime = "2006-01-02T15:04"
	inputDate     = "2006-01-02"
)

type option struct {
	Value string
	Label string
}

type field struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Placeholder string
	Required    bool
	Options     []option
	Error       string
}

// form is a server-rendered form. Fields keep the submitted values so a
// failed validation re-renders what the user typed.
type form struct {
	Title   string
	Action  string
	Submit  string
	Cancel  string
	Message string
	Fields  []field
	Errors  map[string]string
}

func (f *form) Valid() bool {
	return len(f.Errors) == 0
}

// bind copies values and errors onto the fields. A selected value missing
// from a select's options is kept as its own option.
func (f *form) bind(values url.Values) *form {
	for i := range f.Fields {
		fd := &f.Fields[i]
		if v, ok := values[fd.Name]; ok && len(v) > 0 && fd.Type != "password" {
			fd.Value = v[0]
		}
		fd.Error = f.Errors[fd.Name]
		if fd.Type == "select" && fd.Value != "" && !hasOption(fd.Options, fd.Value) {
			fd.Options = append(fd.Options, option{Value: fd.Value, Label: fd.Value})
		}
	}
	return f
}

func hasOption(opts []option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

// validator collects per-field messages.
type validator map[string]string

func (v validator) fail(name, msg string) {
	if _, ok := v[name]; !ok {
		v[name] = msg
	}
}

func (v validator) required(values url.Values, name string) string {
	s := strings.TrimSpace(values.Get(name))
	if s == "" {
		v.fail(name, "Заавал бөглөнө үү")
	}
	return s
}

func (v validator) maxLen(name, s string, n int) {
	if utf8.RuneCountInString(s) > n {
		v.fail(name, "Хэт урт байна")
	}
}

func (v validator) email(values url.Values, name string, required bool) string {
	s := strings.TrimSpace(values.Get(name))
	switch {
	case s == "" && required:
		v.fail(name, "Заавал бөглөнө үү")
	case s != "" && !format.IsValidEmail(s):
		v.fail(name, "И-мэйл хаяг буруу байна")
	}
	return s
}

func (v validator) phone(values url.Values, name string, required bool) string {
	s := strings.TrimSpace(values.Get(name))
	switch {
	case s == "" && required:
		v.fail(name, "Заавал бөглөнө үү")
	case s != "" && !format.IsValidPhone(s):
		v.fail(name, "Утасны дугаар буруу байна (8 орон эсвэл 976-р эхэлсэн)")
	}
	return s
}

func (v validator) nonNegativeInt(values url.Values, name string) int {
	s := strings.TrimSpace(values.Get(name))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		v.fail(name, "Сөрөг биш бүхэл тоо оруулна уу")
		return 0
	}
	return n
}

func (v validator) amount(values url.Values, name string) decimal.Decimal {
	s := strings.ReplaceAll(v.required(values, name), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		v.fail(name, "Дүн буруу байна")
		return decimal.Zero
	}
	if d.IsNegative() {
		v.fail(name, "Дүн сөрөг байж болохгүй")
	}
	return d
}

func (v validator) year(values url.Values, name string) int {
	s := v.required(values, name)
	if s == "" {
		return 0
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < minFeeYear || y > maxFeeYear {
		v.fail(name, "Он 2020-2100 хооронд байна")
		return 0
	}
	return y
}

func (v validator) dateTime(values url.Values, name string, required bool) *time.Time {
	s := strings.TrimSpace(values.Get(name))
	if s == "" {
		if required {
			v.fail(name, "Заавал бөглөнө үү")
		}
		return nil
	}
	for _, layout := range []string{inputDateTime, inputDate} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	v.fail(name, "Огноо буруу байна")
	return nil
}

func statusOptions[S ~string](all []S) []option {
	opts := make([]option, 0, len(all))
	for _, s := range all {
		opts = append(opts, option{Value: string(s), Label: format.StatusLabel(string(s))})
	}
	return opts
}

func organizationOptions(orgs []sdyn.Organization) []option {
	opts := []option{{Value: "", Label: "-"}}
	for _, o := range orgs {
		opts = append(opts, option{Value: o.ID, Label: o.Name})
	}
	return opts
}

func memberFields(orgs []sdyn.Organization, withOrg bool) []field {
	fields := []field{
		{Name: "last_name", Label: "Овог", Type: "text", Required: true},
		{Name: "first_name", Label: "Нэр", Type: "text", Required: true},
		{Name: "email", Label: "И-мэйл", Type: "email"},
		{Name: "phone", Label: "Утас", Type: "tel", Placeholder: "99112233"},
		{Name: "address", Label: "Хаяг", Type: "textarea"},
	}
	if withOrg {
		fields = append(fields, field{Name: "organization_id", Label: "Байгууллага", Type: "select", Options: organizationOptions(orgs)})
	}
	return fields
}

func memberValues(m *sdyn.Member) url.Values {
	return url.Values{
		"first_name":      {m.FirstName},
		"last_name":       {m.LastName},
		"email":           {m.Email},
		"phone":           {m.Phone},
		"address":         {m.Address},
		"organization_id": {m.OrganizationID},
	}
}

func parseMember(values url.Values) (sdyn.MemberInput, validator) {
	v := validator{}
	in := sdyn.MemberInput{
		FirstName:      v.required(values, "first_name"),
		LastName:       v.required(values, "last_name"),
		Email:          v.email(values, "email", false),
		Phone:          v.phone(values, "phone", false),
		Address:        strings.TrimSpace(values.Get("address")),
		OrganizationID: strings.TrimSpace(values.Get("organization_id")),
	}
	v.maxLen("first_name", in.FirstName, 100)
	v.maxLen("last_name", in.LastName, 100)
	return in, v
}

func organizationFields(parents []sdyn.Organization) []field {
	levels := make([]option, 0, len(sdyn.OrgLevels))
	for _, l := range sdyn.OrgLevels {
		levels = append(levels, option{Value: string(l), Label: format.LevelLabel(string(l))})
	}
	return []field{
		{Name: "name", Label: "Нэр", Type: "text", Required: true},
		{Name: "level", Label: "Түвшин", Type: "select", Required: true, Options: levels},
		{Name: "parent_id", Label: "Дээд байгууллага", Type: "select", Options: organizationOptions(parents)},
		{Name: "code", Label: "Код", Type: "text"},
		{Name: "email", Label: "И-мэйл", Type: "email"},
		{Name: "phone", Label: "Утас", Type: "tel"},
		{Name: "address", Label: "Хаяг", Type: "textarea"},
	}
}

func organizationValues(o *sdyn.Organization) url.Values {
	return url.Values{
		"name":      {o.Name},
		"level":     {string(o.Level)},
		"parent_id": {o.ParentID},
		"code":      {o.Code},
		"email":     {o.Email},
		"phone":     {o.Phone},
		"address":   {o.Address},
	}
}

func parseOrganization(values url.Values) (sdyn.OrganizationInput, validator) {
	v := validator{}
	in := sdyn.OrganizationInput{
		Name:     v.required(values, "name"),
		Level:    sdyn.OrgLevel(v.required(values, "level")),
		ParentID: strings.TrimSpace(values.Get("parent_id")),
		Code:     strings.TrimSpace(values.Get("code")),
		Email:    v.email(values, "email", false),
		Phone:    v.phone(values, "phone", false),
		Address:  strings.TrimSpace(values.Get("address")),
	}
	if in.Level != "" && !in.Level.Valid() {
		v.fail("level", "Түвшин буруу байна")
	}
	return in, v
}

var eventTypes = []option{
	{Value: "meeting", Label: "Хурал"},
	{Value: "training", Label: "Сургалт"},
	{Value: "campaign", Label: "Аян"},
	{Value: "other", Label: "Бусад"},
}

func eventFields(orgs []sdyn.Organization) []field {
	return []field{
		{Name: "title", Label: "Гарчиг", Type: "text", Required: true},
		{Name: "type", Label: "Төрөл", Type: "select", Options: eventTypes},
		{Name: "organization_id", Label: "Байгууллага", Type: "select", Options: organizationOptions(orgs)},
		{Name: "location", Label: "Байршил", Type: "text"},
		{Name: "start_date", Label: "Эхлэх", Type: "datetime-local", Required: true},
		{Name: "end_date", Label: "Дуусах", Type: "datetime-local"},
		{Name: "max_participants", Label: "Хүний тоо", Type: "number"},
		{Name: "status", Label: "Төлөв", Type: "select", Options: statusOptions(sdyn.EventStatuses)},
		{Name: "description", Label: "Тайлбар (Markdown)", Type: "textarea"},
	}
}

func eventValues(e *sdyn.Event) url.Values {
	values := url.Values{
		"title":            {e.Title},
		"type":             {e.Type},
		"organization_id":  {e.OrganizationID},
		"location":         {e.Location},
		"start_date":       {e.StartDate.Local().Format(inputDateTime)},
		"max_participants": {strconv.Itoa(e.Capacity)},
		"status":           {string(e.Status)},
		"description":      {e.Description},
	}
	if e.EndDate != nil {
		values.Set("end_date", e.EndDate.Local().Format(inputDateTime))
	}
	return values
}

func parseEvent(values url.Values) (sdyn.EventInput, validator) {
	v := validator{}
	in := sdyn.EventInput{
		Title:          v.required(values, "title"),
		Type:           strings.TrimSpace(values.Get("type")),
		OrganizationID: strings.TrimSpace(values.Get("organization_id")),
		Location:       strings.TrimSpace(values.Get("location")),
		Description:    strings.TrimSpace(values.Get("description")),
		Capacity:       v.nonNegativeInt(values, "max_participants"),
		Status:         sdyn.EventStatus(strings.TrimSpace(values.Get("status"))),
	}
	if in.Type == "" {
		in.Type = "meeting"
	}
	if start := v.dateTime(values, "start_date", true); start != nil {
		in.StartDate = *start
	}
	in.EndDate = v.dateTime(values, "end_date", false)
	if in.EndDate != nil && !in.StartDate.IsZero() && in.EndDate.Before(in.StartDate) {
		v.fail("end_date", "Дуусах огноо эхлэхээс өмнө байж болохгүй")
	}
	if in.Status != "" && !in.Status.Valid() {
		v.fail("status", "Төлөв буруу байна")
	}
	return in, v
}

func feeFields(edit bool) []field {
	fields := []field{
		{Name: "member_id", Label: "Гишүүний ID", Type: "text", Required: true},
		{Name: "amount", Label: "Дүн (₮)", Type: "number", Required: true, Placeholder: "50000"},
		{Name: "year", Label: "Он", Type: "number", Required: true, Value: strconv.Itoa(time.Now().Year())},
		{Name: "status", Label: "Төлөв", Type: "select", Options: statusOptions(sdyn.FeeStatuses)},
	}
	if edit {
		fields = fields[1:]
	}
	return fields
}

func feeValues(f *sdyn.MembershipFee) url.Values {
	return url.Values{
		"member_id": {f.MemberID},
		"amount":    {f.Amount.String()},
		"year":      {strconv.Itoa(f.Year)},
		"status":    {string(f.Status)},
	}
}

func parseFee(values url.Values, edit bool) (sdyn.FeeInput, validator) {
	v := validator{}
	in := sdyn.FeeInput{
		Amount: v.amount(values, "amount"),
		Year:   v.year(values, "year"),
		Status: sdyn.FeeStatus(strings.TrimSpace(values.Get("status"))),
	}
	if !edit {
		in.MemberID = v.required(values, "member_id")
	}
	if in.Status != "" && !in.Status.Valid() {
		v.fail("status", "Төлөв буруу байна")
	}
	return in, v
}

func bulkFeeFields() []field {
	return []field{
		{Name: "member_ids", Label: "Гишүүдийн ID (мөр бүрт нэг)", Type: "textarea", Required: true},
		{Name: "amount", Label: "Дүн (₮)", Type: "number", Required: true, Placeholder: "50000"},
		{Name: "year", Label: "Он", Type: "number", Required: true, Value: strconv.Itoa(time.Now().Year())},
	}
}

// parseBulkFees accepts member ids separated by newlines, commas or spaces.
// Repeated ids are sent once.
func parseBulkFees(values url.Values) (sdyn.BulkFeeInput, validator) {
	v := validator{}
	in := sdyn.BulkFeeInput{
		Amount: v.amount(values, "amount"),
		Year:   v.year(values, "year"),
	}
	seen := map[string]bool{}
	for _, id := range strings.FieldsFunc(values.Get("member_ids"), func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	}) {
		if !seen[id] {
			seen[id] = true
			in.MemberIDs = append(in.MemberIDs, id)
		}
	}
	if len(in.MemberIDs) == 0 {
		v.fail("member_ids", "Гишүүн сонгоно уу")
	}
	return in, v
}

func parseStatusChange(values url.Values) (sdyn.MemberStatus, string, validator) {
	v := validator{}
	status := sdyn.MemberStatus(v.required(values, "status"))
	if status != "" && !status.Valid() {
		v.fail("status", "Төлөв буруу байна")
	}
	reason := v.required(values, "reason")
	v.maxLen("reason", reason, 500)
	return status, reason, v
}

func registerFields() []field {
	return []field{
		{Name: "last_name", Label: "Овог", Type: "text", Required: true},
		{Name: "first_name", Label: "Нэр", Type: "text", Required: true},
		{Name: "email", Label: "И-мэйл", Type: "email", Required: true},
		{Name: "phone", Label: "Утас", Type: "tel", Required: true, Placeholder: "99112233"},
		{Name: "password", Label: "Нууц үг", Type: "password", Required: true},
		{Name: "password_confirm", Label: "Нууц үг давтах", Type: "password", Required: true},
	}
}

const minPasswordLen = 8

func parseRegister(values url.Values) (sdyn.RegisterRequest, validator) {
	v := validator{}
	in := sdyn.RegisterRequest{
		FirstName: v.required(values, "first_name"),
		LastName:  v.required(values, "last_name"),
		Email:     v.email(values, "email", true),
		Phone:     v.phone(values, "phone", true),
		Password:  values.Get("password"),
	}
	switch {
	case in.Password == "":
		v.fail("password", "Заавал бөглөнө үү")
	case utf8.RuneCountInString(in.Password) < minPasswordLen:
		v.fail("password", "Нууц үг хамгийн багадаа 8 тэмдэгт байна")
	case in.Password != values.Get("password_confirm"):
		v.fail("password_confirm", "Нууц үг таарахгүй байна")
	}
	return in, v
}
