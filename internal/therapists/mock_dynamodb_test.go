package therapists

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is a small in-memory stand-in for the therapists table and its
// (area, type) index. It honors the exact condition and key-condition
// expressions the store builds, including Limit/ExclusiveStartKey paging.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // "owner|therapistId" -> item

	putCalls    int
	getCalls    int
	updateCalls int
	deleteCalls int
	queryCalls  int

	lastQueryInput *dyn.QueryInput

	// afterGet runs after a GetItem returns, with the lock released. Tests use
	// it to interleave a writer between a store's load and its conditional
	// write.
	afterGet func()
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func sval(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func nval(av types.AttributeValue) string {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		return n.Value
	}
	return ""
}

func compositeKey(item map[string]types.AttributeValue) string {
	return sval(item[attrUserID]) + "|" + sval(item[attrTherapistID])
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (m *fakeDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++

	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	k := compositeKey(params.Item)
	if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_not_exists") {
		if _, ok := m.items[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *fakeDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	m.getCalls++
	item, ok := m.items[compositeKey(params.Key)]
	var out *dyn.GetItemOutput
	if !ok {
		out = &dyn.GetItemOutput{}
	} else {
		out = &dyn.GetItemOutput{Item: copyItem(item)}
	}
	m.mu.Unlock()

	if m.afterGet != nil {
		m.afterGet()
	}
	return out, nil
}

func (m *fakeDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	item, ok := m.items[compositeKey(params.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == attrVersion+" = :v" {
		expected := nval(params.ExpressionAttributeValues[":v"])
		if nval(item[attrVersion]) != expected {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	expr := strings.TrimPrefix(*params.UpdateExpression, "SET ")
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.SplitN(strings.TrimSpace(assignment), " = ", 2)
		if len(parts) != 2 {
			return nil, errors.New("unparseable update expression: " + assignment)
		}
		item[parts[0]] = params.ExpressionAttributeValues[parts[1]]
	}
	return &dyn.UpdateItemOutput{}, nil
}

func (m *fakeDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++

	k := compositeKey(params.Key)
	item, ok := m.items[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == attrVersion+" = :v" {
		expected := nval(params.ExpressionAttributeValues[":v"])
		if nval(item[attrVersion]) != expected {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(m.items, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *fakeDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	m.lastQueryInput = params

	match, err := queryPredicate(params)
	if err != nil {
		return nil, err
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.items {
		if match(item) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return sval(matched[i][attrTherapistID]) < sval(matched[j][attrTherapistID])
	})

	if params.ExclusiveStartKey != nil {
		startID := sval(params.ExclusiveStartKey[attrTherapistID])
		for len(matched) > 0 && sval(matched[0][attrTherapistID]) <= startID {
			matched = matched[1:]
		}
	}

	limit := len(matched)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}

	out := &dyn.QueryOutput{}
	for _, item := range matched[:limit] {
		out.Items = append(out.Items, copyItem(item))
	}
	// DynamoDB reports a resume key whenever the scan stopped at Limit, even
	// when the page happens to end on the final item.
	if params.Limit != nil && limit == int(*params.Limit) && limit > 0 {
		last := matched[limit-1]
		lek := map[string]types.AttributeValue{
			attrUserID:      last[attrUserID],
			attrTherapistID: last[attrTherapistID],
		}
		if params.IndexName != nil {
			if v, ok := last[attrArea]; ok {
				lek[attrArea] = v
			}
			if v, ok := last[attrType]; ok {
				lek[attrType] = v
			}
		}
		out.LastEvaluatedKey = lek
	}
	return out, nil
}

func queryPredicate(params *dyn.QueryInput) (func(map[string]types.AttributeValue) bool, error) {
	values := params.ExpressionAttributeValues
	switch *params.KeyConditionExpression {
	case attrUserID + " = :u":
		owner := sval(values[":u"])
		return func(item map[string]types.AttributeValue) bool {
			return sval(item[attrUserID]) == owner
		}, nil
	case attrArea + " = :a":
		area := sval(values[":a"])
		return func(item map[string]types.AttributeValue) bool {
			return item[attrArea] != nil && sval(item[attrArea]) == area
		}, nil
	case attrArea + " = :a AND " + attrType + " = :t":
		area, typ := sval(values[":a"]), sval(values[":t"])
		return func(item map[string]types.AttributeValue) bool {
			return item[attrArea] != nil && sval(item[attrArea]) == area &&
				item[attrType] != nil && sval(item[attrType]) == typ
		}, nil
	default:
		return nil, errors.New("unexpected key condition: " + *params.KeyConditionExpression)
	}
}
