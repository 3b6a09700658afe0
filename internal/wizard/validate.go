package wizard

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPhoneDigits = 7

// ValidationErrors is the grouped pre-submission error set. Groups render
// independently so one bad section does not hide the others.
type ValidationErrors struct {
	PersonalInfo []string `json:"personalInfo,omitempty"`
	Slots        []string `json:"slots,omitempty"`
	Payment      []string `json:"payment,omitempty"`
}

func (v *ValidationErrors) Any() bool {
	return v != nil && (len(v.PersonalInfo) > 0 || len(v.Slots) > 0 || len(v.Payment) > 0)
}

func (v *ValidationErrors) Error() string {
	var all []string
	all = append(all, v.PersonalInfo...)
	all = append(all, v.Slots...)
	all = append(all, v.Payment...)
	return strings.Join(all, "; ")
}

func phoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// validateForPayment collects every blocking problem with the draft instead
// of stopping at the first. Caller holds the lock.
func (c *Controller) validateForPayment() *ValidationErrors {
	verrs := &ValidationErrors{}

	if strings.TrimSpace(c.customer.FirstName) == "" {
		verrs.PersonalInfo = append(verrs.PersonalInfo, "first name is required")
	}
	if strings.TrimSpace(c.customer.LastName) == "" {
		verrs.PersonalInfo = append(verrs.PersonalInfo, "last name is required")
	}
	switch {
	case strings.TrimSpace(c.customer.Email) == "":
		verrs.PersonalInfo = append(verrs.PersonalInfo, "email is required")
	case !emailPattern.MatchString(c.customer.Email):
		verrs.PersonalInfo = append(verrs.PersonalInfo, "email address is not valid")
	}
	switch {
	case strings.TrimSpace(c.customer.Phone) == "":
		verrs.PersonalInfo = append(verrs.PersonalInfo, "phone is required")
	case phoneDigits(c.customer.Phone) < minPhoneDigits:
		verrs.PersonalInfo = append(verrs.PersonalInfo, "phone number is too short")
	}

	switch {
	case c.tour == nil:
		verrs.Slots = append(verrs.Slots, "select a tour")
	case c.date == "":
		verrs.Slots = append(verrs.Slots, "select a date")
	case c.timeOfDay == "":
		verrs.Slots = append(verrs.Slots, "select a time")
	}

	partySize := c.effectivePartySize()
	if partySize == 0 && len(c.products) == 0 {
		verrs.Slots = append(verrs.Slots, "select at least one slot or product")
	}
	if partySize > 0 && c.remainingSlots != RemainingUnknown && partySize > c.remainingSlots {
		verrs.Slots = append(verrs.Slots,
			fmt.Sprintf("only %d slots remaining for the selected time", c.remainingSlots))
	}

	if c.tour != nil && c.tour.HasSlotTypes() {
		for i, slot := range c.slots {
			if _, ok := c.tour.SlotTypeByName(slot.Type); !ok {
				verrs.Slots = append(verrs.Slots,
					fmt.Sprintf("slot %d has unknown type %q", i+1, slot.Type))
			}
			for _, field := range c.tour.SlotFields {
				if msg := field.ValidateValue(slot.Fields[field.Name]); msg != "" {
					verrs.Slots = append(verrs.Slots, fmt.Sprintf("slot %d: %s", i+1, msg))
				}
			}
		}
	}

	if c.paymentMethod == "" {
		verrs.Payment = append(verrs.Payment, "select a payment method")
	}

	return verrs
}
