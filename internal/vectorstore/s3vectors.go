package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/document"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
	"github.com/aws/smithy-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/kbchat/internal/model"
)

// S3VectorsAPI is the subset of the S3 Vectors client the store uses.
type S3VectorsAPI interface {
	GetVectorBucket(ctx context.Context, params *s3vectors.GetVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.GetVectorBucketOutput, error)
	CreateVectorBucket(ctx context.Context, params *s3vectors.CreateVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.CreateVectorBucketOutput, error)
	CreateIndex(ctx context.Context, params *s3vectors.CreateIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.CreateIndexOutput, error)
	DeleteIndex(ctx context.Context, params *s3vectors.DeleteIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error)
	PutVectors(ctx context.Context, params *s3vectors.PutVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.PutVectorsOutput, error)
	QueryVectors(ctx context.Context, params *s3vectors.QueryVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error)
}

type S3VectorsStore struct {
	client S3VectorsAPI
	bucket string
	index  string
	metric types.DistanceMetric
}

func NewS3VectorsStore(client S3VectorsAPI, bucket, index, metric string) *S3VectorsStore {
	if metric == "" {
		metric = string(types.DistanceMetricCosine)
	}
	return &S3VectorsStore{
		client: client,
		bucket: bucket,
		index:  index,
		metric: types.DistanceMetric(metric),
	}
}

func (s *S3VectorsStore) EnsureBucket(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("bucket", s.bucket))
	_, err := s.client.GetVectorBucket(ctx, &s3vectors.GetVectorBucketInput{
		VectorBucketName: aws.String(s.bucket),
	})
	if err == nil {
		logger.Info("vector bucket exists")
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("get vector bucket: %w", err)
	}
	logger.Info("creating vector bucket")
	if _, err := s.client.CreateVectorBucket(ctx, &s3vectors.CreateVectorBucketInput{
		VectorBucketName: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("create vector bucket: %w", err)
	}
	logger.Info("vector bucket created")
	return nil
}

// RecreateIndex drops any index with the configured name and creates an empty
// one with the given dimension. The old index is gone before the new one exists.
func (s *S3VectorsStore) RecreateIndex(ctx context.Context, dimension int) error {
	logger := logutil.GetLogger(ctx).With(zap.String("bucket", s.bucket), zap.String("index", s.index))
	_, err := s.client.DeleteIndex(ctx, &s3vectors.DeleteIndexInput{
		VectorBucketName: aws.String(s.bucket),
		IndexName:        aws.String(s.index),
	})
	switch {
	case err == nil:
		logger.Info("deleted existing index")
	case isNotFound(err):
		logger.Info("no existing index to delete")
	default:
		logger.Warn("delete existing index failed", zap.Error(err))
	}
	if _, err := s.client.CreateIndex(ctx, &s3vectors.CreateIndexInput{
		VectorBucketName: aws.String(s.bucket),
		IndexName:        aws.String(s.index),
		Dimension:        aws.Int32(int32(dimension)),
		DataType:         types.DataTypeFloat32,
		DistanceMetric:   s.metric,
	}); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	logger.Info("index created", zap.Int("dimension", dimension), zap.String("metric", string(s.metric)))
	return nil
}

func (s *S3VectorsStore) PutEntries(ctx context.Context, entries []model.IndexEntry) error {
	vectors := make([]types.PutInputVector, 0, len(entries))
	for _, e := range entries {
		vectors = append(vectors, types.PutInputVector{
			Key:      aws.String(e.Key),
			Data:     &types.VectorDataMemberFloat32{Value: e.Vector},
			Metadata: document.NewLazyDocument(e.Metadata),
		})
	}
	if _, err := s.client.PutVectors(ctx, &s3vectors.PutVectorsInput{
		VectorBucketName: aws.String(s.bucket),
		IndexName:        aws.String(s.index),
		Vectors:          vectors,
	}); err != nil {
		return fmt.Errorf("put vectors: %w", err)
	}
	return nil
}

func (s *S3VectorsStore) Query(ctx context.Context, vector []float32, topK int) ([]model.RetrievalHit, error) {
	out, err := s.client.QueryVectors(ctx, &s3vectors.QueryVectorsInput{
		VectorBucketName: aws.String(s.bucket),
		IndexName:        aws.String(s.index),
		QueryVector:      &types.VectorDataMemberFloat32{Value: vector},
		TopK:             aws.Int32(int32(topK)),
		ReturnDistance:   true,
		ReturnMetadata:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	hits := make([]model.RetrievalHit, 0, len(out.Vectors))
	for _, v := range out.Vectors {
		hit := model.RetrievalHit{
			Key:      aws.ToString(v.Key),
			Distance: aws.ToFloat32(v.Distance),
			Metadata: map[string]string{},
		}
		if v.Metadata != nil {
			raw := map[string]interface{}{}
			if err := v.Metadata.UnmarshalSmithyDocument(&raw); err != nil {
				logutil.GetLogger(ctx).Warn("decode vector metadata failed", zap.String("key", hit.Key), zap.Error(err))
			}
			for k, val := range raw {
				if val == nil {
					continue
				}
				hit.Metadata[k] = fmt.Sprint(val)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFoundException
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFoundException"
}
