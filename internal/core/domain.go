package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// NewID marks an entity that has not been persisted yet.
const NewID int64 = 0

const maxNoteLength = 500

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID         int64
		Amount     Money
		Type       TransactionType
		CategoryID int64
		Date       Date
		Note       string // optional
	}

	Category struct {
		ID   int64
		Name string
	}

	Goal struct {
		ID         int64
		Name       string
		Target     Money
		Current    Money
		CreatedAt  time.Time
		TargetDate Date // zero when the goal has no deadline
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}
)

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", Invalid("type", ErrInvalidType)
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateLayout is the storage and wire format of a Date.
const DateLayout = "2006-01-02"

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// IsEmpty returns true if the date is zero (used for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if !t.Type.Valid() {
		return Invalid("type", ErrInvalidType)
	}
	if t.CategoryID <= 0 {
		return Invalid("category", ErrCategoryRequired)
	}
	if err := t.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(t.Note) > maxNoteLength {
		return Invalid("note", ErrNoteTooLong)
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", ErrBlankName)
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return Invalid("name", ErrBlankName)
	}
	if err := g.Target.Validate(); err != nil {
		return Invalid("target", err)
	}
	if g.Current.Cents < 0 || g.Current.Cents > MaxCents {
		return Invalid("current", ErrInvalidAmount)
	}
	return nil
}

// Progress is Current/Target clamped to [0,1]; a goal without a positive target has no progress.
func (g Goal) Progress() float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	p := float64(g.Current.Cents) / float64(g.Target.Cents)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
