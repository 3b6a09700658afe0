package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Custom slot field kinds
const (
	FieldText     = "text"
	FieldNumber   = "number"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
)

// SlotField is an extra per-slot data field collected at booking time
// (e.g. dietary restriction). Min/Max bound the value for number fields
// and the length for text fields.
type SlotField struct {
	Name     string   `json:"name"`
	Kind     string   `json:"type"`
	Required bool     `json:"required"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// ConfigError is a structured parse error for serialized tour configuration.
// It carries the column it came from so callers can report which tour field
// is malformed instead of propagating a raw unmarshal error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %s", e.Field, e.Reason)
}

// ParseSlotTypes parses the serialized slot-type list stored on a tour.
// An empty or null value means the tour uses flat per-person pricing.
func ParseSlotTypes(raw string) ([]SlotType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var types []SlotType
	if err := json.Unmarshal([]byte(raw), &types); err != nil {
		return nil, &ConfigError{Field: "slot_types", Reason: err.Error()}
	}

	seen := make(map[string]bool, len(types))
	for i, st := range types {
		if st.Name == "" {
			return nil, &ConfigError{Field: "slot_types", Reason: fmt.Sprintf("entry %d has no name", i)}
		}
		if st.Price < 0 {
			return nil, &ConfigError{Field: "slot_types", Reason: fmt.Sprintf("%q has a negative price", st.Name)}
		}
		if seen[st.Name] {
			return nil, &ConfigError{Field: "slot_types", Reason: fmt.Sprintf("duplicate type %q", st.Name)}
		}
		seen[st.Name] = true
	}

	return types, nil
}

// ParseSlotFields parses the serialized custom-field definitions stored on a
// tour, validating each field kind up front so render and validation paths
// never see an unknown kind.
func ParseSlotFields(raw string) ([]SlotField, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	var fields []SlotField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, &ConfigError{Field: "slot_fields", Reason: err.Error()}
	}

	for i, f := range fields {
		if f.Name == "" {
			return nil, &ConfigError{Field: "slot_fields", Reason: fmt.Sprintf("entry %d has no name", i)}
		}
		switch f.Kind {
		case FieldText, FieldNumber, FieldCheckbox:
		case FieldSelect:
			if len(f.Options) == 0 {
				return nil, &ConfigError{Field: "slot_fields", Reason: fmt.Sprintf("select field %q has no options", f.Name)}
			}
		default:
			return nil, &ConfigError{Field: "slot_fields", Reason: fmt.Sprintf("field %q has unknown type %q", f.Name, f.Kind)}
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return nil, &ConfigError{Field: "slot_fields", Reason: fmt.Sprintf("field %q has min > max", f.Name)}
		}
	}

	return fields, nil
}

// ValidateValue checks a collected value against the field definition and
// returns a user-facing message, or "" when the value is acceptable.
func (f *SlotField) ValidateValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		if f.Required {
			return fmt.Sprintf("%s is required", f.Name)
		}
		return ""
	}

	switch f.Kind {
	case FieldText:
		if f.Min != nil && float64(len(value)) < *f.Min {
			return fmt.Sprintf("%s must be at least %d characters", f.Name, int(*f.Min))
		}
		if f.Max != nil && float64(len(value)) > *f.Max {
			return fmt.Sprintf("%s must be at most %d characters", f.Name, int(*f.Max))
		}
	case FieldNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Sprintf("%s must be a number", f.Name)
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("%s must be at least %g", f.Name, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("%s must be at most %g", f.Name, *f.Max)
		}
	case FieldSelect:
		for _, opt := range f.Options {
			if value == opt {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", f.Name, strings.Join(f.Options, ", "))
	case FieldCheckbox:
		if value != "true" && value != "false" {
			return fmt.Sprintf("%s must be true or false", f.Name)
		}
	}

	return ""
}
