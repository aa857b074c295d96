package therapists

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/careatlas/therapist-directory/internal/aws"
	"github.com/careatlas/therapist-directory/internal/pagination"
)

const (
	// DefaultListLimit applies when the caller does not supply a page size.
	DefaultListLimit = 10
	// MaxListLimit caps a caller-supplied page size.
	MaxListLimit = 100
)

// Config enumerates the store's collaborators and identifiers in one place.
type Config struct {
	TableName string
	IndexName string // GSI keyed (therapistArea, therapistType)
	Tokens    *pagination.TokenSerializer
}

// Store owns all lifecycle and query operations over therapist records.
// Write safety comes entirely from DynamoDB conditional expressions; the
// store holds no locks and never retries a lost race.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	indexName string
	tokens    *pagination.TokenSerializer
	nowFunc   func() time.Time
	newID     func() string
}

// NewStore creates a therapist Store.
func NewStore(client aws.DynamoDBAPI, cfg Config) *Store {
	return &Store{
		client:    client,
		tableName: cfg.TableName,
		indexName: cfg.IndexName,
		tokens:    cfg.Tokens,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Create persists a new record with a server-generated id, version 1 and the
// current timestamp. The put is conditioned on the compound key not existing,
// so a duplicate id always surfaces as ErrAlreadyExists rather than an
// overwrite.
func (s *Store) Create(ctx context.Context, ownerID string, in CreateInput) (*Record, error) {
	rec := Record{
		UserID:      ownerID,
		TherapistID: s.newID(),
		CreatedAt:   s.nowFunc().UTC().Truncate(time.Millisecond),
		Name:        in.Name,
		Area:        in.Area,
		Type:        in.Type,
		Mobile:      in.Mobile,
		Version:     1,
	}
	log.Printf("creating therapist %s for owner %s", rec.TherapistID, ownerID)

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
		ConditionExpression: awsString(fmt.Sprintf(
			"attribute_not_exists(%s) AND attribute_not_exists(%s)",
			attrUserID, attrTherapistID)),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("therapist %s: %w", rec.TherapistID, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &rec, nil
}

// Get returns the record for the compound key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, ownerID, therapistID string) (*Record, error) {
	return s.load(ctx, ownerID, therapistID)
}

// Update applies the non-nil fields of in and bumps the version by one. The
// write is conditioned on the version observed at load time; a concurrent
// writer makes the condition fail and the caller gets ErrConflict. The
// returned record is the in-memory merge, which is exact because the
// condition proves no other writer committed in between.
func (s *Store) Update(ctx context.Context, ownerID, therapistID string, in UpdateInput) (*Record, error) {
	if in.Empty() {
		return nil, ErrNoUpdate
	}
	log.Printf("updating therapist %s", therapistID)

	rec, err := s.load(ctx, ownerID, therapistID)
	if err != nil {
		return nil, err
	}

	values := map[string]types.AttributeValue{}
	var sets []string
	if in.Name != nil {
		rec.Name = in.Name
		values[":a"] = &types.AttributeValueMemberS{Value: *in.Name}
		sets = append(sets, attrName+" = :a")
	}
	if in.Mobile != nil {
		rec.Mobile = in.Mobile
		values[":d"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*in.Mobile, 10)}
		sets = append(sets, attrMobile+" = :d")
	}
	if in.Type != nil {
		rec.Type = in.Type
		values[":h"] = &types.AttributeValueMemberS{Value: *in.Type}
		sets = append(sets, attrType+" = :h")
	}
	if in.Area != nil {
		rec.Area = in.Area
		values[":l"] = &types.AttributeValueMemberS{Value: *in.Area}
		sets = append(sets, attrArea+" = :l")
	}

	newVersion := rec.Version + 1
	values[":nv"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(newVersion, 10)}
	sets = append(sets, attrVersion+" = :nv")
	values[":v"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version, 10)}

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyFor(ownerID, therapistID),
		UpdateExpression:          awsString("SET " + strings.Join(sets, ",")),
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString(attrVersion + " = :v"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, fmt.Errorf("therapist %s: %w", therapistID, ErrConflict)
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	rec.Version = newVersion
	return rec, nil
}

// Delete removes the record, conditioned on the version observed by a prior
// consistent read. A record updated between the read and the delete survives
// and the caller gets ErrConflict.
func (s *Store) Delete(ctx context.Context, ownerID, therapistID string) error {
	log.Printf("deleting therapist %s", therapistID)
	rec, err := s.load(ctx, ownerID, therapistID)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 keyFor(ownerID, therapistID),
		ConditionExpression: awsString(attrVersion + " = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.Version, 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("therapist %s: %w", therapistID, ErrConflict)
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Page is one page of list/search results plus the continuation token, which
// is present only while DynamoDB reports more results.
type Page struct {
	Items     []Summary
	NextToken string
}

// List returns the owner's therapists ordered by therapistId, one page at a
// time. nextToken resumes a previous page; limit <= 0 means DefaultListLimit.
func (s *Store) List(ctx context.Context, ownerID string, limit int, nextToken string) (*Page, error) {
	log.Printf("listing therapists for owner %s", ownerID)
	return s.query(ctx, queryParams{
		keyCondition: attrUserID + " = :u",
		values: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: ownerID},
		},
		consistent: true,
		limit:      limit,
		nextToken:  nextToken,
	})
}

// QueryByAreaType searches the (area, type) index: equality on area alone, or
// on area and type when therapistType is non-empty. Pagination behaves exactly
// as in List.
func (s *Store) QueryByAreaType(ctx context.Context, area, therapistType string, limit int, nextToken string) (*Page, error) {
	log.Printf("searching therapists by area %q type %q", area, therapistType)
	cond := attrArea + " = :a"
	values := map[string]types.AttributeValue{
		":a": &types.AttributeValueMemberS{Value: area},
	}
	if therapistType != "" {
		cond += " AND " + attrType + " = :t"
		values[":t"] = &types.AttributeValueMemberS{Value: therapistType}
	}
	return s.query(ctx, queryParams{
		keyCondition: cond,
		values:       values,
		indexName:    s.indexName,
		limit:        limit,
		nextToken:    nextToken,
	})
}

type queryParams struct {
	keyCondition string
	values       map[string]types.AttributeValue
	indexName    string
	consistent   bool
	limit        int
	nextToken    string
}

// query is the single pagination routine behind List and QueryByAreaType.
func (s *Store) query(ctx context.Context, p queryParams) (*Page, error) {
	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		KeyConditionExpression:    &p.keyCondition,
		ExpressionAttributeValues: p.values,
		Limit:                     awsInt32(clampLimit(p.limit)),
	}
	if p.indexName != "" {
		input.IndexName = &p.indexName
	}
	if p.consistent {
		input.ConsistentRead = awsBool(true)
	}
	if p.nextToken != "" {
		start, err := s.tokens.Deserialize(p.nextToken)
		if err != nil {
			return nil, err
		}
		input.ExclusiveStartKey = start
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	items := make([]Summary, 0, len(out.Items))
	for _, item := range out.Items {
		var rec Record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		items = append(items, rec.Summary())
	}

	page := &Page{Items: items}
	if len(out.LastEvaluatedKey) > 0 {
		token, err := s.tokens.Serialize(out.LastEvaluatedKey)
		if err != nil {
			return nil, fmt.Errorf("serialize resume key: %w", err)
		}
		page.NextToken = token
	}
	return page, nil
}

// load does the strongly consistent read behind Get, Update and Delete.
func (s *Store) load(ctx context.Context, ownerID, therapistID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: awsBool(true),
		Key:            keyFor(ownerID, therapistID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("therapist %s: %w", therapistID, ErrNotFound)
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func clampLimit(limit int) int32 {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return int32(limit)
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
func awsInt32(i int32) *int32    { return &i }
