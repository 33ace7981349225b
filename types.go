package sdyn

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleNationalAdmin Role = "national_admin"
	RoleProvinceAdmin Role = "province_admin"
	RoleDistrictAdmin Role = "district_admin"
	RoleMember        Role = "member"
)

// AdminRoles are the realm roles that grant access to the admin dashboard.
var AdminRoles = []Role{RoleNationalAdmin, RoleProvinceAdmin, RoleDistrictAdmin}

type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberInactive  MemberStatus = "inactive"
	MemberPending   MemberStatus = "pending"
	MemberSuspended MemberStatus = "suspended"
	MemberExpelled  MemberStatus = "expelled"
)

// MemberStatuses lists the statuses an admin may assign.
var MemberStatuses = []MemberStatus{MemberActive, MemberInactive, MemberPending, MemberSuspended}

func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberInactive, MemberPending, MemberSuspended, MemberExpelled:
		return true
	}
	return false
}

type OrgLevel string

const (
	OrgNational OrgLevel = "national"
	OrgProvince OrgLevel = "province"
	OrgDistrict OrgLevel = "district"
	OrgBranch   OrgLevel = "branch"
)

var OrgLevels = []OrgLevel{OrgNational, OrgProvince, OrgDistrict}

func (l OrgLevel) Valid() bool {
	switch l {
	case OrgNational, OrgProvince, OrgDistrict, OrgBranch:
		return true
	}
	return false
}

type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
	EventDraft     EventStatus = "draft"
)

var EventStatuses = []EventStatus{EventUpcoming, EventOngoing, EventCompleted, EventCancelled}

func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventOngoing, EventCompleted, EventCancelled, EventDraft:
		return true
	}
	return false
}

type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePaid    FeeStatus = "paid"
	FeeOverdue FeeStatus = "overdue"
	FeeWaived  FeeStatus = "waived"
)

var FeeStatuses = []FeeStatus{FeePending, FeePaid, FeeOverdue}

func (s FeeStatus) Valid() bool {
	switch s {
	case FeePending, FeePaid, FeeOverdue, FeeWaived:
		return true
	}
	return false
}

type Member struct {
	ID               string       `json:"id"`
	MemberID         string       `json:"member_id"`
	FirstName        string       `json:"first_name"`
	LastName         string       `json:"last_name"`
	Email            string       `json:"email,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	Address          string       `json:"address,omitempty"`
	OrganizationID   string       `json:"organization_id,omitempty"`
	OrganizationName string       `json:"organization_name,omitempty"`
	Status           MemberStatus `json:"status"`
	JoinedAt         *time.Time   `json:"joined_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (m Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.LastName + " " + m.FirstName
}

// MemberInput is the payload of member create, update and profile update.
// Optional text fields are always sent so an update can clear them.
type MemberInput struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	OrganizationID string `json:"organization_id,omitempty"`
}

type MemberHistory struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Organization struct {
	ID            string     `json:"id"`
	ParentID      string     `json:"parent_id,omitempty"`
	ParentName    string     `json:"parent_name,omitempty"`
	Name          string     `json:"name"`
	Level         OrgLevel   `json:"level"`
	Code          string     `json:"code,omitempty"`
	Address       string     `json:"address,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	IsActive      bool       `json:"is_active"`
	TotalMembers  int        `json:"total_members"`
	ActiveMembers int        `json:"active_members"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type OrganizationInput struct {
	ParentID string   `json:"parent_id,omitempty"`
	Name     string   `json:"name"`
	Level    OrgLevel `json:"level"`
	Code     string   `json:"code"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
}

type Event struct {
	ID               string      `json:"id"`
	OrganizationID   string      `json:"organization_id,omitempty"`
	OrganizationName string      `json:"organization_name,omitempty"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Type             string      `json:"type,omitempty"`
	Location         string      `json:"location,omitempty"`
	StartDate        time.Time   `json:"start_date"`
	EndDate          *time.Time  `json:"end_date,omitempty"`
	Capacity         int         `json:"max_participants,omitempty"`
	Registered       int         `json:"total_registered"`
	Status           EventStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Full reports whether the event has reached its capacity.
func (e Event) Full() bool {
	return e.Capacity > 0 && e.Registered >= e.Capacity
}

type EventInput struct {
	OrganizationID string      `json:"organization_id,omitempty"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Type           string      `json:"type"`
	Location       string      `json:"location"`
	StartDate      time.Time   `json:"start_date"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	Capacity       int         `json:"max_participants"`
	Status         EventStatus `json:"status,omitempty"`
}

type EventParticipant struct {
	MemberID     string    `json:"member_id"`
	MemberName   string    `json:"member_name"`
	RegisteredAt time.Time `json:"registered_at"`
	Attended     bool      `json:"attended"`
}

type MembershipFee struct {
	ID         string          `json:"id"`
	MemberID   string          `json:"member_id"`
	MemberName string          `json:"member_name,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Year       int             `json:"year"`
	Status     FeeStatus       `json:"status"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type FeeInput struct {
	MemberID string          `json:"member_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Year     int             `json:"year"`
	Status   FeeStatus       `json:"status,omitempty"`
}

// MarshalJSON sends the amount as a JSON number, which the backend expects.
func (in FeeInput) MarshalJSON() ([]byte, error) {
	type alias FeeInput
	return json.Marshal(struct {
		alias
		Amount json.RawMessage `json:"amount"`
	}{alias(in), json.RawMessage(in.Amount.String())})
}

// BulkFeeInput creates one pending fee per member for the same year.
type BulkFeeInput struct {
	MemberIDs []string        `json:"member_ids"`
	Amount    decimal.Decimal `json:"amount"`
	Year      int             `json:"year"`
}

func (in BulkFeeInput) MarshalJSON() ([]byte, error) {
	type alias BulkFeeInput
	return json.Marshal(struct {
		alias
		Amount json.RawMessage `json:"amount"`
	}{alias(in), json.RawMessage(in.Amount.String())})
}

// OrganizationStats are the membership, fee and event totals of one
// organization.
type OrganizationStats struct {
	TotalMembers   int             `json:"total_members"`
	ActiveMembers  int             `json:"active_members"`
	PendingMembers int             `json:"pending_members"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	PaidFees       decimal.Decimal `json:"paid_fees"`
	TotalEvents    int             `json:"total_events"`
	ByStatus       map[string]int  `json:"by_status,omitempty"`
}

type DashboardStats struct {
	TotalMembers       int             `json:"totalMembers"`
	ActiveMembers      int             `json:"activeMembers"`
	TotalOrganizations int             `json:"totalOrganizations"`
	TotalEvents        int             `json:"totalEvents"`
	UpcomingEvents     int             `json:"upcomingEvents"`
	TotalFees          decimal.Decimal `json:"totalFees"`
	PaidFees           decimal.Decimal `json:"paidFees"`
	PendingFees        decimal.Decimal `json:"pendingFees"`
	MemberGrowth       float64         `json:"memberGrowth"`
	FeeCollectionRate  float64         `json:"feeCollectionRate"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Page is one page of a paginated list response.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// ListParams are the server-side list filters. Zero values are omitted.
type ListParams struct {
	Page           int
	PageSize       int
	Search         string
	Status         string
	OrganizationID string
	MemberID       string
	Year           int

	// SortBy is an API field name; SortOrder is SortAsc or SortDesc.
	SortBy    string
	SortOrder string
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	if p.OrganizationID != "" {
		v.Set("organization_id", p.OrganizationID)
	}
	if p.MemberID != "" {
		v.Set("member_id", p.MemberID)
	}
	if p.Year > 0 {
		v.Set("year", strconv.Itoa(p.Year))
	}
	if p.SortBy != "" {
		v.Set("sort_by", p.SortBy)
		if p.SortOrder != "" {
			v.Set("sort_order", p.SortOrder)
		}
	}
	return v
}
