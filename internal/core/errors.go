package core

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrBlankName          = errors.New("name cannot be blank")
	ErrCategoryRequired   = errors.New("category is required")
	ErrNoteTooLong        = errors.New("note too long (max 500 characters)")
	ErrInvalidRange       = errors.New("range start is after range end")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrUsernameExists     = errors.New("username exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCategoryInUse      = errors.New("category is used by existing transactions")
	ErrInvalidLanguage    = errors.New("invalid language code")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError reports user input that was rejected before reaching the store.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a ValidationError on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// StoreError reports a failed store operation (constraint violation, missing row, I/O fault).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStore reports whether err carries a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
