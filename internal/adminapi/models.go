package adminapi

import (
	"encoding/json"
	"strconv"
	"time"

	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
)

// Product is the admin view of a listing.
type Product struct {
	ID          int64
	Title       string
	Description string
	Price       json.Number
	Condition   string
	Category    string
	IsActive    bool
	IsVerified  bool
	IsFlagged   bool
	IsSold      bool
	Spotlighted bool
	OwnerID     int64
	Owner       string
	Images      []string
	CreatedAt   time.Time
}

func (p *Product) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int("id", "product_id")
	owner, _ := f.int(aliasProductOwnerID...)
	*p = Product{
		ID:          id,
		Title:       f.str("title", "name"),
		Description: f.str("description"),
		Condition:   f.str("condition"),
		Category:    f.str("category", "category_name"),
		IsActive:    f.bool("is_active"),
		IsVerified:  f.bool("is_verified"),
		IsFlagged:   f.bool("is_flagged"),
		IsSold:      f.bool("is_sold"),
		Spotlighted: f.bool("is_spotlighted", "spotlighted"),
		OwnerID:     owner,
		Owner:       f.str(aliasProductOwner...),
		Images:      f.strings(aliasProductImages...),
		CreatedAt:   f.time("created_at"),
	}
	if s := f.str("price"); s != "" {
		p.Price = json.Number(s)
	}
	return nil
}

// ProductUpdate is a partial update; nil fields are not sent.
type ProductUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
	IsVerified  *bool    `json:"is_verified,omitempty"`
	IsFlagged   *bool    `json:"is_flagged,omitempty"`
	IsSold      *bool    `json:"is_sold,omitempty"`
}

// Spotlight is a time-boxed promotional placement.
type Spotlight struct {
	StartTime     time.Time
	EndTime       time.Time
	DurationHours int
	AppliedBy     string
	Status        string
}

// Active reports whether the spotlight is running at now. A missing status
// falls back to the time window.
func (s Spotlight) Active(now time.Time) bool {
	switch s.Status {
	case "active":
		return true
	case "expired", "removed", "cancelled":
		return false
	}
	return !s.EndTime.IsZero() && now.Before(s.EndTime)
}

func (s *Spotlight) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	hours, _ := f.int("duration_hours", "duration")
	*s = Spotlight{
		StartTime:     f.time("start_time", "started_at"),
		EndTime:       f.time("end_time", "ends_at", "custom_end_time"),
		DurationHours: int(hours),
		AppliedBy:     f.str("applied_by_username", "applied_by", "admin"),
		Status:        f.str("status"),
	}
	return nil
}

// SpotlightStatus is the response of the product spotlight endpoint.
type SpotlightStatus struct {
	ProductID   int64
	Spotlighted bool
	Spotlight   *Spotlight
}

func (s *SpotlightStatus) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int("product_id", "id")
	*s = SpotlightStatus{ProductID: id, Spotlighted: f.bool("is_spotlighted", "spotlighted")}
	if v, ok := f.pick("spotlight"); ok {
		var sp Spotlight
		if json.Unmarshal(v, &sp) == nil {
			s.Spotlight = &sp
		}
	}
	return nil
}

// SpotlightRequest applies a spotlight either for a number of hours or
// until an explicit end time. Exactly one must be set.
type SpotlightRequest struct {
	DurationHours int        `json:"duration_hours,omitempty"`
	CustomEndTime *time.Time `json:"custom_end_time,omitempty"`
}

// SpotlightHistoryEntry is one row of the spotlight audit.
type SpotlightHistoryEntry struct {
	ID           int64
	ProductID    int64
	ProductTitle string
	AppliedBy    string
	RemovedBy    string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
}

func (h *SpotlightHistoryEntry) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int("id")
	pid, _ := f.int(aliasHistoryProduct...)
	*h = SpotlightHistoryEntry{
		ID:           id,
		ProductID:    pid,
		ProductTitle: f.str(aliasHistoryTitle...),
		AppliedBy:    f.str(aliasHistoryApplied...),
		RemovedBy:    f.str(aliasHistoryRemovedBy...),
		StartTime:    f.time("start_time", "started_at"),
		EndTime:      f.time("end_time", "ended_at"),
		Status:       f.str("status"),
	}
	return nil
}

// User is the admin view of an account.
type User struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Phone        string
	IsAdmin      bool
	IsModerator  bool
	IsActive     bool
	IsVerified   bool
	IsBanned     bool
	IsSuspended  bool
	ListingCount int
	Permissions  *permissions.Set
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Status is the single most significant account state.
func (u User) Status() string {
	switch {
	case u.IsBanned:
		return "banned"
	case u.IsSuspended:
		return "suspended"
	case !u.IsActive:
		return "inactive"
	case !u.IsVerified:
		return "unverified"
	default:
		return "active"
	}
}

// Role is "admin", "moderator" or "user".
func (u User) Role() string {
	switch {
	case u.IsAdmin:
		return "admin"
	case u.IsModerator:
		return "moderator"
	default:
		return "user"
	}
}

func (u *User) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int(aliasUserID...)
	listings, _ := f.int(aliasUserListings...)
	*u = User{
		ID:           id,
		Email:        f.str("email"),
		Username:     f.str("username"),
		FirstName:    f.str("first_name"),
		LastName:     f.str("last_name"),
		Phone:        f.str("phone", "phone_number"),
		IsAdmin:      f.bool("is_admin"),
		IsModerator:  f.bool("is_moderator"),
		IsActive:     f.bool("is_active"),
		IsVerified:   f.bool("is_verified", "is_email_verified"),
		IsBanned:     f.bool("is_banned"),
		IsSuspended:  f.bool("is_suspended"),
		ListingCount: int(listings),
		CreatedAt:    f.time("created_at"),
		LastLogin:    f.time("last_login", "last_login_at"),
	}
	if _, ok := f["is_active"]; !ok {
		u.IsActive = true
	}
	if v, ok := f.pick("permissions"); ok {
		var p permissions.Set
		if json.Unmarshal(v, &p) == nil {
			u.Permissions = &p
		}
	}
	return nil
}

// UserCreate is the body of a user creation request.
type UserCreate struct {
	Email       string           `json:"email" validate:"required,email"`
	Username    string           `json:"username" validate:"required,username"`
	Password    string           `json:"password" validate:"required,password"`
	FirstName   string           `json:"first_name,omitempty" validate:"max=100"`
	LastName    string           `json:"last_name,omitempty" validate:"max=100"`
	Phone       string           `json:"phone,omitempty" validate:"omitempty,phone"`
	IsAdmin     bool             `json:"is_admin"`
	IsModerator bool             `json:"is_moderator"`
	Permissions *permissions.Set `json:"permissions,omitempty"`
}

// UserUpdate is a partial update; nil fields are not sent.
type UserUpdate struct {
	Email       *string          `json:"email,omitempty" validate:"omitempty,email"`
	Username    *string          `json:"username,omitempty" validate:"omitempty,username"`
	FirstName   *string          `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string          `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone       *string          `json:"phone,omitempty" validate:"omitempty,phone"`
	IsAdmin     *bool            `json:"is_admin,omitempty"`
	IsModerator *bool            `json:"is_moderator,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
	IsVerified  *bool            `json:"is_verified,omitempty"`
	IsBanned    *bool            `json:"is_banned,omitempty"`
	Permissions *permissions.Set `json:"permissions,omitempty"`
}

// Report is a flagged product with its most recent report.
type Report struct {
	ID           int64
	ProductID    int64
	ProductTitle string
	Reporter     string
	Reason       string
	Status       string
	ReportCount  int
	ReportedAt   time.Time
}

func (r *Report) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int(aliasReportID...)
	pid, _ := f.int(aliasReportProduct...)
	count, ok := f.int(aliasReportCount...)
	if !ok {
		count = 1
	}
	*r = Report{
		ID:           id,
		ProductID:    pid,
		ProductTitle: f.str(aliasReportTitle...),
		Reporter:     f.str(aliasReportReporter...),
		Reason:       f.str(aliasReportReason...),
		Status:       f.str(aliasReportStatus...),
		ReportCount:  int(count),
		ReportedAt:   f.time(aliasReportAt...),
	}
	return nil
}

// LogEntry is one line of the admin audit trail.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Actor     string
	ActorRole string
	Action    string
	Target    string
	Details   string
}

func (l *LogEntry) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int("id")
	*l = LogEntry{
		ID:        id,
		Timestamp: f.time(aliasLogTime...),
		Actor:     f.str(aliasLogActor...),
		ActorRole: f.str(aliasLogActorRole...),
		Action:    f.str("action", "action_type"),
		Target:    f.str(aliasLogTarget...),
		Details:   f.str(aliasLogDetails...),
	}
	if l.ActorRole == "" {
		switch {
		case f.bool("is_admin"):
			l.ActorRole = "admin"
		case f.bool("is_moderator"):
			l.ActorRole = "moderator"
		}
	}
	return nil
}

// Counter is one dashboard figure with its period-over-period change.
type Counter struct {
	Value  int64
	Change float64
}

// FormatChange renders Change as a signed percentage.
func (c Counter) FormatChange() string {
	s := strconv.FormatFloat(c.Change, 'f', 1, 64) + "%"
	if c.Change > 0 {
		s = "+" + s
	}
	return s
}

// Overview holds the dashboard counters.
type Overview struct {
	TotalUsers           Counter
	TotalProducts        Counter
	PendingVerifications Counter
	FlaggedContent       Counter
}

func (o *Overview) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	counter := func(value []string, change []string) Counter {
		n, _ := f.int(value...)
		return Counter{Value: n, Change: f.float(change...)}
	}
	*o = Overview{
		TotalUsers:           counter([]string{"total_users"}, []string{"total_users_change", "users_change"}),
		TotalProducts:        counter([]string{"total_products", "total_listings"}, []string{"total_products_change", "products_change"}),
		PendingVerifications: counter([]string{"pending_verifications"}, []string{"pending_verifications_change", "verifications_change"}),
		FlaggedContent:       counter([]string{"flagged_content_count", "flagged_content", "flagged_count"}, []string{"flagged_content_change", "flagged_content_count_change", "flagged_change"}),
	}
	return nil
}

// Me is the identity behind the current access token.
type Me struct {
	User        session.User
	Permissions *permissions.Set
}

func (m *Me) UnmarshalJSON(b []byte) error {
	var f fields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	id, _ := f.int("user_id", "id")
	*m = Me{User: session.User{
		ID:          id,
		Email:       f.str("email"),
		Username:    f.str("username"),
		IsAdmin:     f.bool("is_admin"),
		IsModerator: f.bool("is_moderator"),
	}}
	if v, ok := f.pick("permissions"); ok {
		var p permissions.Set
		if json.Unmarshal(v, &p) == nil {
			m.Permissions = &p
		}
	}
	return nil
}
