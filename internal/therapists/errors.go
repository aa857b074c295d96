package therapists

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors returned by Store. Callers match with errors.Is; the store
// never retries on its own.
var (
	// ErrNotFound indicates the (owner, therapist) compound key has no item.
	ErrNotFound = errors.New("therapist not found")

	// ErrAlreadyExists indicates a create collided with an existing compound key.
	ErrAlreadyExists = errors.New("therapist already exists")

	// ErrConflict indicates an update or delete lost the optimistic-concurrency
	// race: the stored version no longer matches the one observed at load time.
	ErrConflict = errors.New("therapist was modified concurrently")

	// ErrNoUpdate indicates an update request carried no fields to change.
	ErrNoUpdate = errors.New("no update is present")
)

// isConditionalCheckFailed reports whether err is DynamoDB rejecting a
// ConditionExpression.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}
