package main

// ChangeMessage is the payload sent from API -> SQS -> Worker whenever a
// therapist record changes.
type ChangeMessage struct {
	EventType   string `json:"eventType"` // created | updated | deleted
	OwnerID     string `json:"ownerId"`
	TherapistID string `json:"therapistId"`
}
