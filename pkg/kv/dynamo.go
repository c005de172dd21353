package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoStore implements Store on a DynamoDB single-table layout.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a store over the given table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Get returns the item under key, or ErrNotFound.
func (s *DynamoStore) Get(ctx context.Context, key Key) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       marshalKey(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamo get: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalItem(out.Item)
}

// Query returns all items in a partition whose sort key satisfies cond.
func (s *DynamoStore) Query(ctx context.Context, partition string, cond SortCondition) ([]Item, error) {
	return s.query(ctx, nil, AttrPartitionKey, AttrSortKey, partition, cond)
}

// QueryByIndex is Query against a secondary index.
func (s *DynamoStore) QueryByIndex(ctx context.Context, index, partition string, cond SortCondition) ([]Item, error) {
	pkAttr, skAttr, err := indexAttrs(index)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, aws.String(index), pkAttr, skAttr, partition, cond)
}

func (s *DynamoStore) query(ctx context.Context, index *string, pkAttr, skAttr, partition string, cond SortCondition) ([]Item, error) {
	keyCond := "#pk = :pk"
	names := map[string]string{"#pk": pkAttr}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: partition},
	}
	switch {
	case cond.Equals != "":
		keyCond += " AND #sk = :sk"
		names["#sk"] = skAttr
		values[":sk"] = &types.AttributeValueMemberS{Value: cond.Equals}
	case cond.BeginsWith != "":
		keyCond += " AND begins_with(#sk, :sk)"
		names["#sk"] = skAttr
		values[":sk"] = &types.AttributeValueMemberS{Value: cond.BeginsWith}
	}

	var items []Item
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			IndexName:                 index,
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo query: %w", err)
		}
		for _, raw := range out.Items {
			item, err := unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

// Update applies a partial field set to an existing item.
func (s *DynamoStore) Update(ctx context.Context, key Key, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields))
	names := map[string]string{"#pk": AttrPartitionKey}
	values := make(map[string]types.AttributeValue, len(fields))
	i := 0
	for name, value := range fields {
		alias := fmt.Sprintf("#f%d", i)
		placeholder := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return fmt.Errorf("dynamo update: marshal %s: %w", name, err)
		}
		sets = append(sets, fmt.Sprintf("%s = %s", alias, placeholder))
		names[alias] = name
		values[placeholder] = av
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       marshalKey(key),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrNotFound
		}
		return fmt.Errorf("dynamo update: %w", err)
	}
	return nil
}

// TransactWrite applies up to MaxTransactOps operations atomically.
func (s *DynamoStore) TransactWrite(ctx context.Context, ops []WriteOp) error {
	if err := validateTransactOps(ops); err != nil {
		return &TransactFailedError{Reason: err.Error(), Err: err}
	}

	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		if op.Put != nil {
			raw, err := marshalItem(op.Put)
			if err != nil {
				return &TransactFailedError{Reason: "marshal put item", Err: err}
			}
			put := &types.Put{TableName: aws.String(s.table), Item: raw}
			if op.IfNotExists {
				put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
				put.ExpressionAttributeNames = map[string]string{"#pk": AttrPartitionKey}
			}
			items = append(items, types.TransactWriteItem{Put: put})
			continue
		}
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.table),
			Key:       marshalKey(*op.Delete),
		}})
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return &TransactFailedError{Reason: "transaction canceled", Err: err}
		}
		return &TransactFailedError{Reason: "transact write failed", Err: err}
	}
	return nil
}

// BatchWrite applies operations in sequential chunks of MaxBatchSize. Earlier
// chunks are not rolled back when a later chunk fails.
func (s *DynamoStore) BatchWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	applied := 0
	for applied < len(ops) {
		end := applied + MaxBatchSize
		if end > len(ops) {
			end = len(ops)
		}

		requests := make([]types.WriteRequest, 0, end-applied)
		for _, op := range ops[applied:end] {
			if op.Put != nil {
				raw, err := marshalItem(op.Put)
				if err != nil {
					return &PartialBatchError{Applied: applied, Remaining: len(ops) - applied, Err: err}
				}
				requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: raw}})
				continue
			}
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
				Key: marshalKey(*op.Delete),
			}})
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: requests},
		}
		for len(input.RequestItems[s.table]) > 0 {
			out, err := s.client.BatchWriteItem(ctx, input)
			if err != nil {
				return &PartialBatchError{Applied: applied, Remaining: len(ops) - applied, Err: err}
			}
			unprocessed := out.UnprocessedItems[s.table]
			if len(unprocessed) == 0 {
				break
			}
			input.RequestItems = map[string][]types.WriteRequest{s.table: unprocessed}
		}
		applied = end
	}
	return nil
}

func marshalKey(key Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPartitionKey: &types.AttributeValueMemberS{Value: key.PartitionKey},
		AttrSortKey:      &types.AttributeValueMemberS{Value: key.SortKey},
	}
}

func marshalItem(item Item) (map[string]types.AttributeValue, error) {
	raw, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return raw, nil
}

func unmarshalItem(raw map[string]types.AttributeValue) (Item, error) {
	var out map[string]any
	if err := attributevalue.UnmarshalMap(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return Item(out), nil
}
