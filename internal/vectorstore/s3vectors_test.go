package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/document"
	"github.com/aws/aws-sdk-go-v2/service/s3vectors/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/kbchat/internal/model"
)

type fakeS3Vectors struct {
	getBucketErr  error
	deleteErr     error
	createIdxErr  error
	calls         []string
	createdBucket *s3vectors.CreateVectorBucketInput
	createdIndex  *s3vectors.CreateIndexInput
	put           []*s3vectors.PutVectorsInput
	queryIn       *s3vectors.QueryVectorsInput
	queryOut      *s3vectors.QueryVectorsOutput
}

func (f *fakeS3Vectors) GetVectorBucket(ctx context.Context, params *s3vectors.GetVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.GetVectorBucketOutput, error) {
	f.calls = append(f.calls, "get_bucket")
	return &s3vectors.GetVectorBucketOutput{}, f.getBucketErr
}

func (f *fakeS3Vectors) CreateVectorBucket(ctx context.Context, params *s3vectors.CreateVectorBucketInput, optFns ...func(*s3vectors.Options)) (*s3vectors.CreateVectorBucketOutput, error) {
	f.calls = append(f.calls, "create_bucket")
	f.createdBucket = params
	return &s3vectors.CreateVectorBucketOutput{}, nil
}

func (f *fakeS3Vectors) CreateIndex(ctx context.Context, params *s3vectors.CreateIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.CreateIndexOutput, error) {
	f.calls = append(f.calls, "create_index")
	f.createdIndex = params
	return &s3vectors.CreateIndexOutput{}, f.createIdxErr
}

func (f *fakeS3Vectors) DeleteIndex(ctx context.Context, params *s3vectors.DeleteIndexInput, optFns ...func(*s3vectors.Options)) (*s3vectors.DeleteIndexOutput, error) {
	f.calls = append(f.calls, "delete_index")
	return &s3vectors.DeleteIndexOutput{}, f.deleteErr
}

func (f *fakeS3Vectors) PutVectors(ctx context.Context, params *s3vectors.PutVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.PutVectorsOutput, error) {
	f.calls = append(f.calls, "put_vectors")
	f.put = append(f.put, params)
	return &s3vectors.PutVectorsOutput{}, nil
}

func (f *fakeS3Vectors) QueryVectors(ctx context.Context, params *s3vectors.QueryVectorsInput, optFns ...func(*s3vectors.Options)) (*s3vectors.QueryVectorsOutput, error) {
	f.calls = append(f.calls, "query")
	f.queryIn = params
	if f.queryOut == nil {
		return &s3vectors.QueryVectorsOutput{}, nil
	}
	return f.queryOut, nil
}

func TestEnsureBucketExisting(t *testing.T) {
	fake := &fakeS3Vectors{}
	store := NewS3VectorsStore(fake, "bucket", "index", "")
	require.NoError(t, store.EnsureBucket(context.Background()))
	require.Equal(t, []string{"get_bucket"}, fake.calls)
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeS3Vectors{getBucketErr: &types.NotFoundException{Message: aws.String("missing")}}
	store := NewS3VectorsStore(fake, "bucket", "index", "")
	require.NoError(t, store.EnsureBucket(context.Background()))
	require.Equal(t, []string{"get_bucket", "create_bucket"}, fake.calls)
	require.Equal(t, "bucket", aws.ToString(fake.createdBucket.VectorBucketName))
}

func TestEnsureBucketOtherErrorIsFatal(t *testing.T) {
	fake := &fakeS3Vectors{getBucketErr: errors.New("access denied")}
	store := NewS3VectorsStore(fake, "bucket", "index", "")
	require.Error(t, store.EnsureBucket(context.Background()))
	require.Equal(t, []string{"get_bucket"}, fake.calls)
}

func TestRecreateIndexDeletesFirst(t *testing.T) {
	fake := &fakeS3Vectors{deleteErr: &types.NotFoundException{Message: aws.String("no index")}}
	store := NewS3VectorsStore(fake, "bucket", "kb-index", "cosine")
	require.NoError(t, store.RecreateIndex(context.Background(), 1024))
	require.Equal(t, []string{"delete_index", "create_index"}, fake.calls)
	require.Equal(t, int32(1024), aws.ToInt32(fake.createdIndex.Dimension))
	require.Equal(t, types.DataTypeFloat32, fake.createdIndex.DataType)
	require.Equal(t, types.DistanceMetricCosine, fake.createdIndex.DistanceMetric)
	require.Equal(t, "kb-index", aws.ToString(fake.createdIndex.IndexName))
}

func TestRecreateIndexIgnoresDeleteFailure(t *testing.T) {
	fake := &fakeS3Vectors{deleteErr: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}}
	store := NewS3VectorsStore(fake, "bucket", "kb-index", "")
	require.NoError(t, store.RecreateIndex(context.Background(), 4))
	require.Equal(t, []string{"delete_index", "create_index"}, fake.calls)
}

func TestIsNotFoundGenericAPIError(t *testing.T) {
	require.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFoundException"}))
	require.False(t, isNotFound(&smithy.GenericAPIError{Code: "ValidationException"}))
	require.False(t, isNotFound(errors.New("boom")))
}

func TestRecreateIndexCreateFailure(t *testing.T) {
	fake := &fakeS3Vectors{createIdxErr: errors.New("limit exceeded")}
	store := NewS3VectorsStore(fake, "bucket", "kb-index", "euclidean")
	require.Error(t, store.RecreateIndex(context.Background(), 8))
}

func TestPutEntries(t *testing.T) {
	fake := &fakeS3Vectors{}
	store := NewS3VectorsStore(fake, "bucket", "index", "")
	err := store.PutEntries(context.Background(), []model.IndexEntry{
		{Key: "chunk_00000", Vector: []float32{1, 2}, Metadata: map[string]string{"text": "a"}},
		{Key: "chunk_00001", Vector: []float32{3, 4}, Metadata: map[string]string{"text": "b"}},
	})
	require.NoError(t, err)
	require.Len(t, fake.put, 1)
	vectors := fake.put[0].Vectors
	require.Len(t, vectors, 2)
	require.Equal(t, "chunk_00001", aws.ToString(vectors[1].Key))
	data, ok := vectors[1].Data.(*types.VectorDataMemberFloat32)
	require.True(t, ok)
	require.Equal(t, []float32{3, 4}, data.Value)
}

func TestQueryDecodesHits(t *testing.T) {
	fake := &fakeS3Vectors{queryOut: &s3vectors.QueryVectorsOutput{
		Vectors: []types.QueryOutputVector{
			{
				Key:      aws.String("chunk_00003"),
				Distance: aws.Float32(0.125),
				Metadata: document.NewLazyDocument(map[string]interface{}{"text": "hello", "source": "a.md"}),
			},
			{Key: aws.String("chunk_00004")},
		},
	}}
	store := NewS3VectorsStore(fake, "bucket", "index", "")
	hits, err := store.Query(context.Background(), []float32{0.1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "chunk_00003", hits[0].Key)
	require.InDelta(t, 0.125, hits[0].Distance, 1e-6)
	require.Equal(t, "hello", hits[0].Metadata["text"])
	require.Equal(t, "a.md", hits[0].Metadata["source"])
	require.Empty(t, hits[1].Metadata)

	require.Equal(t, int32(5), aws.ToInt32(fake.queryIn.TopK))
	require.True(t, fake.queryIn.ReturnDistance)
	require.True(t, fake.queryIn.ReturnMetadata)
}
