package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// An update with no fields is rejected up front, before any storage call.
	v.RegisterStructValidation(updateTherapistStructValidation, UpdateTherapistRequest{})

	return v
}

func updateTherapistStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateTherapistRequest)

	if req.TherapistName == nil && req.TherapistArea == nil &&
		req.TherapistType == nil && req.TherapistMob == nil {
		sl.ReportError(req, "therapistName", "TherapistName", "at_least_one_field", "")
	}
}
