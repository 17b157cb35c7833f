package item

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 1000
)

// ErrNotFound is returned when no item matches (id, owner). An item owned
// by someone else is reported the same way as one that does not exist.
var ErrNotFound = errors.New("item not found")

// ErrOwnerRequired is returned when a store operation is called without an owner.
var ErrOwnerRequired = errors.New("owner id is required")

// Item is an owner-scoped resource.
type Item struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input holds the client-settable fields of a new item. It has no owner
// field: the owner always comes from the authenticated caller.
type Input struct {
	Name        string
	Description *string
}

// Patch holds the fields to change. Nil fields are left as they are.
type Patch struct {
	Name        *string
	Description *string
}

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Normalise trims the name and validates. It must be called before any write.
func (in *Input) Normalise() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateName(in.Name); err != nil {
		return err
	}
	return validateDescription(in.Description)
}

// Normalise trims a provided name and validates the provided fields.
func (p *Patch) Normalise() error {
	if p.Name == nil && p.Description == nil {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
		if err := validateName(name); err != nil {
			return err
		}
	}
	return validateDescription(p.Description)
}

func validateName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: "name must be at most 200 characters"}
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: "description must be at most 1000 characters"}
	}
	return nil
}

// Page selects a window of a list. A zero Limit means no limit.
type Page struct {
	Offset int
	Limit  int
}
