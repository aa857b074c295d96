package therapists

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB attribute names, shared by the record tags, key probes and the
// expressions built in store.go.
const (
	attrUserID      = "userId"
	attrTherapistID = "therapistId"
	attrCreatedAt   = "createdAt"
	attrName        = "therapistName"
	attrArea        = "therapistArea"
	attrType        = "therapistType"
	attrMobile      = "therapistMob"
	attrVersion     = "version"
)

// Record is the item persisted in the therapists table. Optional fields are
// pointers with omitempty so absent values never reach the wire; mobile and
// version are stored as DynamoDB numbers and round-trip as int64 exactly.
type Record struct {
	UserID      string    `dynamodbav:"userId"`
	TherapistID string    `dynamodbav:"therapistId"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	Name        *string   `dynamodbav:"therapistName,omitempty"`
	Area        *string   `dynamodbav:"therapistArea,omitempty"`
	Type        *string   `dynamodbav:"therapistType,omitempty"`
	Mobile      *int64    `dynamodbav:"therapistMob,omitempty"`
	Version     int64     `dynamodbav:"version"`
}

// Summary is the list/search projection of a Record: descriptive fields and
// identifiers only, no concurrency version.
type Summary struct {
	TherapistID string
	CreatedAt   time.Time
	Name        *string
	Area        *string
	Type        *string
	Mobile      *int64
}

// Summary projects the record for list responses.
func (r Record) Summary() Summary {
	return Summary{
		TherapistID: r.TherapistID,
		CreatedAt:   r.CreatedAt,
		Name:        r.Name,
		Area:        r.Area,
		Type:        r.Type,
		Mobile:      r.Mobile,
	}
}

// CreateInput holds the caller-supplied fields for a new therapist.
type CreateInput struct {
	Name   *string
	Area   *string
	Type   *string
	Mobile *int64
}

// UpdateInput holds the fields an update wants to change. Nil fields keep
// their stored value.
type UpdateInput struct {
	Name   *string
	Area   *string
	Type   *string
	Mobile *int64
}

// Empty reports whether the update carries no field at all.
func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Area == nil && in.Type == nil && in.Mobile == nil
}

// keyFor builds the key-only probe item for the compound key.
func keyFor(ownerID, therapistID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID:      &types.AttributeValueMemberS{Value: ownerID},
		attrTherapistID: &types.AttributeValueMemberS{Value: therapistID},
	}
}
