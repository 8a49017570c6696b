package analytics

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/model"
)

const DefaultTTLDays = 30

type Recorder interface {
	Record(ctx context.Context, rec *model.AnalyticsRecord) error
}

type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type DynamoRecorder struct {
	client DynamoAPI
	table  string
}

func NewDynamoRecorder(client DynamoAPI, table string) *DynamoRecorder {
	return &DynamoRecorder{client: client, table: table}
}

func (r *DynamoRecorder) Record(ctx context.Context, rec *model.AnalyticsRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal analytics record: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put analytics record: %w", err)
	}
	logutil.GetLogger(ctx).Debug("analytics recorded", zap.String("message_id", rec.MessageID))
	return nil
}

// NewRecord builds the statistics for one exchange. Only character counts and
// the context flag are kept, never the text itself.
func NewRecord(query, reply, contextText string, ttlDays int, now time.Time) *model.AnalyticsRecord {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &model.AnalyticsRecord{
		SessionID:      uuid.NewString(),
		MessageID:      uuid.NewString(),
		Timestamp:      now.UTC().Format(time.RFC3339Nano),
		QueryLength:    utf8.RuneCountInString(query),
		ResponseLength: utf8.RuneCountInString(reply),
		ContextUsed:    contextText != "",
		ContextLength:  utf8.RuneCountInString(contextText),
		TTL:            now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix(),
	}
}
