package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "RUN#"
	skMeta   = "META"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements RunStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table. Records expire ttl
// after they are written; a non-positive ttl disables expiry.
func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

// --- Internal helpers ---

func runPK(runID string) string {
	return pkPrefix + runID
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// --- RunStore ---

// PutRun writes the record under RUN#{runId} / META.
func (s *DynamoStore) PutRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.RunID == "" {
		return fmt.Errorf("run record requires a run ID")
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", rec.RunID, err)
	}

	pk := runPK(rec.RunID)
	for k, v := range keyOf(pk, skMeta) {
		item[k] = v
	}
	if s.ttl > 0 {
		expires := s.now().Add(s.ttl).Unix()
		item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	log.Debug().Str("runId", rec.RunID).Str("status", rec.Status).Msg("Run record stored")
	return nil
}

// GetRun reads a run record. Returns nil, nil if not found.
func (s *DynamoStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	pk := runPK(runID)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(pk, skMeta),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var rec RunRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if pkAttr, ok := result.Item["PK"].(*types.AttributeValueMemberS); ok {
		rec.RunID = strings.TrimPrefix(pkAttr.Value, pkPrefix)
	}
	return &rec, nil
}
