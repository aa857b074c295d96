package validation

// CreateTherapistRequest is the payload for POST /therapists.
// Every descriptive field is optional; the server generates the id,
// creation time and initial version.
type CreateTherapistRequest struct {
	TherapistName *string `json:"therapistName,omitempty" validate:"omitempty,max=256"`
	TherapistArea *string `json:"therapistArea,omitempty" validate:"omitempty,max=128"`
	TherapistType *string `json:"therapistType,omitempty" validate:"omitempty,max=128"`
	TherapistMob  *int64  `json:"therapistMob,omitempty" validate:"omitempty,gt=0"`
}

// UpdateTherapistRequest is the payload for PUT /therapists/:therapistId.
// At least one field must be present; nil fields keep their stored value.
type UpdateTherapistRequest struct {
	TherapistName *string `json:"therapistName,omitempty" validate:"omitempty,max=256"`
	TherapistArea *string `json:"therapistArea,omitempty" validate:"omitempty,max=128"`
	TherapistType *string `json:"therapistType,omitempty" validate:"omitempty,max=128"`
	TherapistMob  *int64  `json:"therapistMob,omitempty" validate:"omitempty,gt=0"`
}
