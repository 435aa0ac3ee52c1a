package flows

import (
	"fmt"
	"strings"
)

// ValidationError represents a slot value the validator rejected. The flow
// re-prompts the same slot with guidance; the slot index does not advance.
type ValidationError struct {
	Slot    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for slot %s: %s", e.Slot, e.Message)
}

// NewValidationError creates a validation error for a slot.
func NewValidationError(slot, message string) *ValidationError {
	return &ValidationError{Slot: slot, Message: message}
}

// SlotDefinition describes one piece of information a flow must collect.
// Validators are shape checks only, never semantic validation.
type SlotDefinition struct {
	Name     string
	Prompt   string
	Guidance string
	Validate func(value string) error
}

// Schema is the ordered slot list for one multi-turn flow.
type Schema struct {
	ID            string
	Slots         []SlotDefinition
	ConfirmPrompt string
}

// SlotNames returns the declared slot names in collection order.
func (s *Schema) SlotNames() []string {
	names := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		names[i] = slot.Name
	}
	return names
}

// Slot returns the definition for name, or (nil, false) when the flow does
// not declare it.
func (s *Schema) Slot(name string) (*SlotDefinition, bool) {
	for i := range s.Slots {
		if s.Slots[i].Name == name {
			return &s.Slots[i], true
		}
	}
	return nil, false
}

// Declares reports whether name is a slot of this flow.
func (s *Schema) Declares(name string) bool {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return true
		}
	}
	return false
}

// FirstUnfilled returns the index of the first slot absent from filled, or
// (-1, false) when every slot is filled.
func (s *Schema) FirstUnfilled(filled map[string]string) (int, bool) {
	for i, slot := range s.Slots {
		if _, ok := filled[slot.Name]; !ok {
			return i, true
		}
	}
	return -1, false
}

// NonEmpty validates that a value contains at least minLen non-space
// characters.
func NonEmpty(minLen int) func(string) error {
	return func(value string) error {
		if len(strings.TrimSpace(value)) < minLen {
			return fmt.Errorf("value must be at least %d characters", minLen)
		}
		return nil
	}
}
