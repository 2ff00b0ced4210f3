package account

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/joebot/clipbot/internal/bus"
)

// dynamodbAPI is the subset of the DynamoDB client used by DynamoStore.
// *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore keeps one item per identity, keyed by the numeric "identity" attribute.
type DynamoStore struct {
	api   dynamodbAPI
	table string
	now   func() time.Time
}

// OpenDynamo loads the default AWS configuration and returns a store on table.
func OpenDynamo(ctx context.Context, table, region string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if strings.TrimSpace(region) != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	return NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// NewDynamoStore creates a store over an existing client.
func NewDynamoStore(api dynamodbAPI, table string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("dynamodb api must not be nil")
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("dynamodb table name must not be empty")
	}
	return &DynamoStore{api: api, table: table, now: time.Now}, nil
}

func (s *DynamoStore) FindOrCreate(ctx context.Context, id bus.Identity) (*Account, error) {
	now := s.nowAttr()
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              identityKey(id),
		UpdateExpression: aws.String("SET balance = if_not_exists(balance, :zero), created_at = if_not_exists(created_at, :now), updated_at = if_not_exists(updated_at, :now)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": numAttr(0),
			":now":  now,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find or create account %s", id)
	}
	return itemToAccount(id, out.Attributes)
}

func (s *DynamoStore) AddCredits(ctx context.Context, id bus.Identity, n int) (int, error) {
	if n < 0 {
		return 0, errors.Errorf("add credits: negative amount %d", n)
	}
	now := s.nowAttr()
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              identityKey(id),
		UpdateExpression: aws.String("ADD balance :n SET updated_at = :now, created_at = if_not_exists(created_at, :now)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":   numAttr(int64(n)),
			":now": now,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to add %d credits to %s", n, id)
	}
	acc, err := itemToAccount(id, out.Attributes)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (s *DynamoStore) ConsumeOneCredit(ctx context.Context, id bus.Identity) (int, error) {
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 identityKey(id),
		UpdateExpression:    aws.String("ADD balance :neg SET updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(balance) AND balance > :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":neg":  numAttr(-1),
			":zero": numAttr(0),
			":now":  s.nowAttr(),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, ErrInsufficientBalance
		}
		return 0, errors.Wrapf(err, "failed to debit %s", id)
	}
	acc, err := itemToAccount(id, out.Attributes)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (s *DynamoStore) Close() error { return nil }

func (s *DynamoStore) nowAttr() types.AttributeValue {
	return numAttr(s.now().Unix())
}

func identityKey(id bus.Identity) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"identity": numAttr(int64(id))}
}

func numAttr(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func itemToAccount(id bus.Identity, item map[string]types.AttributeValue) (*Account, error) {
	if len(item) == 0 {
		return nil, ErrNotFound
	}
	balance, err := intAttr(item, "balance")
	if err != nil {
		return nil, err
	}
	acc := &Account{Identity: id, Balance: int(balance)}
	if v, err := intAttr(item, "created_at"); err == nil {
		acc.CreatedAt = time.Unix(v, 0)
	}
	if v, err := intAttr(item, "updated_at"); err == nil {
		acc.UpdatedAt = time.Unix(v, 0)
	}
	return acc, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, errors.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse attribute %q", key)
	}
	return parsed, nil
}
