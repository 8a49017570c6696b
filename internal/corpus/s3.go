package corpus

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/awsutil"
	"github.com/xxxsen/kbchat/internal/model"
)

type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Config struct {
	awsutil.Options
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

type s3Source struct {
	client S3API
	bucket string
	prefix string
}

func init() {
	Register("s3", createS3Source)
}

func createS3Source(args interface{}) (Source, error) {
	cfg := &s3Config{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 corpus bucket is required")
	}
	awsCfg, err := awsutil.Load(context.Background(), cfg.Options)
	if err != nil {
		return nil, err
	}
	return NewS3Source(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

func NewS3Source(client S3API, bucket, prefix string) Source {
	return &s3Source{client: client, bucket: bucket, prefix: strings.TrimPrefix(prefix, "/")}
}

func (s *s3Source) Load(ctx context.Context) ([]model.Document, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("bucket", s.bucket), zap.String("prefix", s.prefix))
	logger.Info("loading markdown objects")

	var docs []model.Document
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list corpus objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !isMarkdown(key) {
				continue
			}
			rel := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
			content, err := s.read(ctx, key)
			if err != nil {
				logger.Warn("read document failed, skipped", zap.String("key", key), zap.Error(err))
				continue
			}
			if strings.TrimSpace(content) == "" {
				continue
			}
			docs = append(docs, model.Document{Path: rel, Content: content})
		}
	}
	sortDocuments(docs)
	logger.Info("documents loaded", zap.Int("count", len(docs)))
	return docs, nil
}

func (s *s3Source) read(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
