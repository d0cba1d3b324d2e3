package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

const (
	OriginSystem CategoryOrigin = "system"
	OriginUser   CategoryOrigin = "user"
)

// Periodicity classifies how a transaction recurs. Zero means one-off;
// values above one carry a recurrence rule (day-of-week or day-of-month).
const (
	PeriodicityNone   Periodicity = 0
	PeriodicityCustom Periodicity = 10
)

type (
	TransactionKind  string
	NotificationKind string
	CategoryOrigin   string
	Periodicity      int

	Date struct {
		time.Time
	}

	User struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Language string `json:"language,omitempty"`
		Currency string `json:"currency,omitempty"`
	}

	// Session holds the authenticated user and the credential used for API
	// calls. The token may be empty when the deployment authenticates via an
	// HTTP-only cookie instead.
	Session struct {
		User          *User
		Token         string
		Authenticated bool
	}

	Transaction struct {
		ID             string          `json:"_id"`
		Kind           TransactionKind `json:"type"`
		Amount         decimal.Decimal `json:"amount"`
		Category       string          `json:"category"`
		Description    string          `json:"description"`
		Date           Date            `json:"date"`
		CreatedAt      time.Time       `json:"createdAt"`
		Periodicity    Periodicity     `json:"periodicity,omitempty"`
		RecurrenceRule string          `json:"recurrenceRule,omitempty"`
	}

	Category struct {
		ID          string          `json:"_id"`
		Name        string          `json:"name"`
		Direction   TransactionKind `json:"transactionType"`
		Description string          `json:"description,omitempty"`
		Color       string          `json:"color,omitempty"`
		Origin      CategoryOrigin  `json:"type"`
	}

	// Notification is a single entry in the local notification store. ID is
	// always present and locally generated; ServerID is set once the backend
	// has persisted the notification and is the deduplication key.
	Notification struct {
		ID            string
		ServerID      string
		Kind          NotificationKind
		Title         string
		Message       string
		TitleKey      string
		MessageKey    string
		MessageParams map[string]string
		Link          string
		Read          bool
		CreatedAt     time.Time
	}

	// TransactionSummary mirrors the backend's aggregate totals for a
	// transaction listing.
	TransactionSummary struct {
		TotalIncome      decimal.Decimal `json:"totalIncome"`
		TotalExpense     decimal.Decimal `json:"totalExpense"`
		Balance          decimal.Decimal `json:"balance"`
		TransactionCount int             `json:"transactionCount"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidPeriodicity = errors.New("invalid periodicity")
	ErrNotificationShape  = errors.New("notification must carry either literal text or translation keys")
)

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON renders the date in the wire format used by the backend.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON accepts both plain dates and full RFC 3339 timestamps; the
// backend has emitted both shapes across versions.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return ErrInvalidDate
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Periodicity < PeriodicityNone || t.Periodicity > PeriodicityCustom {
		return ErrInvalidPeriodicity
	}
	return nil
}

// Validate checks the invariant that exactly one content form is populated:
// literal title/message, or translation key with optional parameters.
func (n Notification) Validate() error {
	if !n.Kind.Valid() {
		return errors.New("invalid notification kind")
	}
	literal := n.Title != "" || n.Message != ""
	keyed := n.TitleKey != "" || n.MessageKey != ""
	if literal == keyed {
		return ErrNotificationShape
	}
	return nil
}

// FilterCategories returns the categories usable for the given transaction
// direction, preserving order.
func FilterCategories(categories []Category, direction TransactionKind) []Category {
	var out []Category
	for _, c := range categories {
		if c.Direction == direction {
			out = append(out, c)
		}
	}
	return out
}

// LoggedIn reports whether the session carries an authenticated user.
func (s Session) LoggedIn() bool {
	return s.Authenticated && s.User != nil && s.User.ID != ""
}
