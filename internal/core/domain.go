package core

import (
	"net/mail"
	"strings"
	"time"
)

const (
	// MinPasswordLength is the minimum accepted password length on registration.
	MinPasswordLength = 6

	// MaxTitleLength bounds expense titles.
	MaxTitleLength = 120

	// MaxDescriptionLength bounds expense descriptions.
	MaxDescriptionLength = 500
)

type (
	// User is a registered account. The password is only ever held as a
	// bcrypt hash; plaintext never leaves the registration/login handlers.
	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Expense is a single expense record owned by exactly one user.
	Expense struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"userId"`
		Title       string    `json:"title"`
		Amount      float64   `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Date is a calendar date without a time-of-day component.
	// On the wire it is the ISO-8601 date "2006-01-02".
	Date struct {
		time.Time
	}
)

const dateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date. A full RFC 3339 timestamp is
// accepted and truncated to its date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON renders the date as a quoted ISO calendar date.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts "2006-01-02" or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidEmail reports whether s is a well-formed single address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Registration holds the input of a register request.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate returns the field-level validation errors for a registration,
// or nil when the input is acceptable.
func (r Registration) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(r.Username) == "" {
		errs = errs.Add("username", "username is required")
	}
	if !ValidEmail(strings.TrimSpace(r.Email)) {
		errs = errs.Add("email", "enter a valid email")
	}
	if len(r.Password) < MinPasswordLength {
		errs = errs.Add("password", "password must be at least 6 characters long")
	}
	return errs.OrNil()
}

// Credentials holds the input of a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	var errs ValidationErrors
	if !ValidEmail(strings.TrimSpace(c.Email)) {
		errs = errs.Add("email", "enter a valid email")
	}
	if c.Password == "" {
		errs = errs.Add("password", "password is required")
	}
	return errs.OrNil()
}

// ExpenseInput holds the mutable fields of an expense as submitted by a
// client, for both create and full-replace update.
type ExpenseInput struct {
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	Date        Date    `json:"date"`
	Description string  `json:"description"`
}

func (in ExpenseInput) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Title) == "" {
		errs = errs.Add("title", "title is required")
	} else if len(in.Title) > MaxTitleLength {
		errs = errs.Add("title", "title too long")
	}
	if in.Amount <= 0 {
		errs = errs.Add("amount", "amount must be greater than 0")
	}
	if in.Date.IsZero() {
		errs = errs.Add("date", "date must be a valid date")
	}
	if strings.TrimSpace(in.Description) == "" {
		errs = errs.Add("description", "description is required")
	} else if len(in.Description) > MaxDescriptionLength {
		errs = errs.Add("description", "description too long")
	}
	return errs.OrNil()
}
