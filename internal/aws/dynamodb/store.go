package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"tasnim.dev/role-grant/internal/grant"
)

const DefaultTableName = "IAMRoleRequests"

type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *awsddb.PutItemInput, optFns ...func(*awsddb.Options)) (*awsddb.PutItemOutput, error)
	GetItem(ctx context.Context, params *awsddb.GetItemInput, optFns ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *awsddb.UpdateItemInput, optFns ...func(*awsddb.Options)) (*awsddb.UpdateItemOutput, error)
}

// Store is a grant.Store backed by a DynamoDB table keyed on request_id.
type Store struct {
	api   DynamoDBAPI
	table string
}

func NewStore(api DynamoDBAPI, table string) *Store {
	if table == "" {
		table = DefaultTableName
	}
	return &Store{api: api, table: table}
}

func (s *Store) Create(ctx context.Context, req *grant.RoleRequest) error {
	item, err := attributevalue.MarshalMap(toRecord(req))
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.RequestID, err)
	}

	cond := expression.AttributeNotExists(expression.Name("request_id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = s.api.PutItem(ctx, &awsddb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("PutItem(%s): request_id already exists", req.RequestID)
		}
		return fmt.Errorf("PutItem(%s): %w", req.RequestID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, requestID string) (*grant.RoleRequest, error) {
	out, err := s.api.GetItem(ctx, &awsddb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(requestID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem(%s): %w", requestID, err)
	}
	if len(out.Item) == 0 {
		return nil, grant.ErrNotFound
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", requestID, err)
	}
	return rec.toRequest(), nil
}

// Transition writes status `to` only if the item exists and its current
// status is one of `from`.
func (s *Store) Transition(ctx context.Context, requestID string, from []grant.Status, to grant.Status) error {
	if len(from) == 0 {
		return fmt.Errorf("transition %s: no source status", requestID)
	}

	allowed := make([]expression.OperandBuilder, len(from))
	for i, st := range from {
		allowed[i] = expression.Value(string(st))
	}
	cond := expression.AttributeExists(expression.Name("request_id")).
		And(expression.Name("status").In(allowed[0], allowed[1:]...))
	update := expression.Set(expression.Name("status"), expression.Value(string(to)))

	expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	_, err = s.api.UpdateItem(ctx, &awsddb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 key(requestID),
		ConditionExpression:                 expr.Condition(),
		UpdateExpression:                    expr.Update(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: ddbtypes.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return grant.ErrNotFound
			}
			return fmt.Errorf("%w: request %s changed concurrently", grant.ErrConflict, requestID)
		}
		return fmt.Errorf("UpdateItem(%s): %w", requestID, err)
	}
	return nil
}

func key(requestID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"request_id": &ddbtypes.AttributeValueMemberS{Value: requestID},
	}
}
