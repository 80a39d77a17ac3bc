package framework

import (
	"github.com/go-playground/validator/v10"
)

// Slots is the customer record the conversation exists to fill. Every field
// is a pointer so "not yet provided" is distinguishable from a zero value.
// Field names double as the wire names in the partner API payload.
type Slots struct {
	Debt        *float64 `json:"Debt" validate:"omitempty,gt=0"`
	FirstName   *string  `json:"FirstName" validate:"omitempty,min=1"`
	LastName    *string  `json:"LastName" validate:"omitempty,min=1"`
	Zip         *string  `json:"Zip" validate:"omitempty,numeric,len=5"`
	Phone       *string  `json:"Phone" validate:"omitempty,min=10"`
	Email       *string  `json:"Email" validate:"omitempty,email"`
	City        *string  `json:"City" validate:"omitempty,min=1"`
	State       *string  `json:"State" validate:"omitempty,len=2"`
	Address     *string  `json:"Address" validate:"omitempty,min=1"`
	DateOfBirth *string  `json:"DateOfBirth" validate:"omitempty,datetime=2006-01-02"`
}

var slotValidator = validator.New()

// Complete reports whether every required field is present.
func (s Slots) Complete() bool {
	return len(s.Missing()) == 0
}

// Missing lists the field names still unset, in a stable order the assistant
// can recite back to the customer.
func (s Slots) Missing() []string {
	var missing []string
	if s.Debt == nil {
		missing = append(missing, "Debt")
	}
	if s.FirstName == nil {
		missing = append(missing, "FirstName")
	}
	if s.LastName == nil {
		missing = append(missing, "LastName")
	}
	if s.Zip == nil {
		missing = append(missing, "Zip")
	}
	if s.Phone == nil {
		missing = append(missing, "Phone")
	}
	if s.Email == nil {
		missing = append(missing, "Email")
	}
	if s.City == nil {
		missing = append(missing, "City")
	}
	if s.State == nil {
		missing = append(missing, "State")
	}
	if s.Address == nil {
		missing = append(missing, "Address")
	}
	if s.DateOfBirth == nil {
		missing = append(missing, "DateOfBirth")
	}
	return missing
}

// Validate checks every present field against its constraints.
func (s Slots) Validate() error {
	return slotValidator.Struct(s)
}

// Sanitize drops candidate values that fail validation, so a bad extraction
// degrades to "field still unknown" instead of poisoning the record.
func (s Slots) Sanitize() Slots {
	out := s
	if out.Debt != nil && slotValidator.Var(*out.Debt, "gt=0") != nil {
		out.Debt = nil
	}
	if out.FirstName != nil && *out.FirstName == "" {
		out.FirstName = nil
	}
	if out.LastName != nil && *out.LastName == "" {
		out.LastName = nil
	}
	if out.Zip != nil && slotValidator.Var(*out.Zip, "numeric,len=5") != nil {
		out.Zip = nil
	}
	if out.Phone != nil && slotValidator.Var(*out.Phone, "min=10") != nil {
		out.Phone = nil
	}
	if out.Email != nil && slotValidator.Var(*out.Email, "email") != nil {
		out.Email = nil
	}
	if out.City != nil && *out.City == "" {
		out.City = nil
	}
	if out.State != nil && slotValidator.Var(*out.State, "len=2") != nil {
		out.State = nil
	}
	if out.Address != nil && *out.Address == "" {
		out.Address = nil
	}
	if out.DateOfBirth != nil && slotValidator.Var(*out.DateOfBirth, "datetime=2006-01-02") != nil {
		out.DateOfBirth = nil
	}
	return out
}

// MergeSlots folds an extraction candidate into the known record. Known
// values win: a field already set is never cleared and never overwritten by a
// later extraction. The one exception is Zip, which the customer may correct;
// a replaced zip triggers city/state re-derivation upstream. Debt is later
// overwritten only by the authoritative credit pull, which goes through the
// reducer rather than this merge.
func MergeSlots(base, update Slots) Slots {
	out := base
	if out.Debt == nil {
		out.Debt = update.Debt
	}
	if out.FirstName == nil {
		out.FirstName = update.FirstName
	}
	if out.LastName == nil {
		out.LastName = update.LastName
	}
	if update.Zip != nil {
		out.Zip = update.Zip
	}
	if out.Phone == nil {
		out.Phone = update.Phone
	}
	if out.Email == nil {
		out.Email = update.Email
	}
	if out.City == nil {
		out.City = update.City
	}
	if out.State == nil {
		out.State = update.State
	}
	if out.Address == nil {
		out.Address = update.Address
	}
	if out.DateOfBirth == nil {
		out.DateOfBirth = update.DateOfBirth
	}
	return out
}
