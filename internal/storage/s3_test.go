package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-manager/internal/domain"
)

// fakeS3 serves listings in fixed-size pages.
type fakeS3 struct {
	mu       sync.Mutex
	keys     []string
	pageSize int
	objects  map[string][]byte
	listErr  error
	listed   []*s3.ListObjectsV2Input
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, in)
	if f.listErr != nil {
		return nil, f.listErr
	}

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	size := f.pageSize
	if in.MaxKeys != nil && int(*in.MaxKeys) < size {
		size = int(*in.MaxKeys)
	}
	end := start + size
	if end > len(f.keys) {
		end = len(f.keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(f.keys))}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(k)))})
	}
	if end < len(f.keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func hourKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = "processed-logs/2024/03/07/14/part-" + strconv.Itoa(1000+i)
	}
	return keys
}

func TestS3Store_List(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		maxKeys int
		want    int
	}{
		{name: "single page", total: 3, maxKeys: 1000, want: 3},
		{name: "follows continuation", total: 7, maxKeys: 0, want: 7},
		{name: "capped across pages", total: 7, maxKeys: 5, want: 5},
		{name: "max keys one", total: 7, maxKeys: 1, want: 1},
		{name: "empty", total: 0, maxKeys: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeS3{keys: hourKeys(tt.total), pageSize: 3}
			store := newS3Store(fake, "logs")

			got, err := store.List(context.Background(), "processed-logs/2024/03/07/", tt.maxKeys)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for i, obj := range got {
				assert.Equal(t, fake.keys[i], obj.Key)
			}
			require.NotEmpty(t, fake.listed)
			assert.Equal(t, "logs", aws.ToString(fake.listed[0].Bucket))
			assert.Equal(t, "processed-logs/2024/03/07/", aws.ToString(fake.listed[0].Prefix))
		})
	}
}

func TestS3Store_ListError(t *testing.T) {
	fake := &fakeS3{listErr: errors.New("AccessDenied"), pageSize: 3}
	store := newS3Store(fake, "logs")

	_, err := store.List(context.Background(), "processed-logs/", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestS3Store_Get(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"a": []byte("hello")}}
	store := newS3Store(fake, "logs")

	rc, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))

	_, err = store.Get(context.Background(), "missing")
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
}

func TestNewS3Store_StaticCredentials(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:       "logs",
		Region:       "eu-central-1",
		Endpoint:     "fsn1.your-objectstorage.com",
		UsePathStyle: true,
		KeyID:        "key",
		Secret:       "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "logs", store.Bucket())

	client, ok := store.client.(*s3.Client)
	require.True(t, ok)
	assert.Equal(t, "https://fsn1.your-objectstorage.com", aws.ToString(client.Options().BaseEndpoint))
	assert.True(t, client.Options().UsePathStyle)
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "standard", input: "s3://my-bucket/athena/results/", wantBucket: "my-bucket", wantKey: "athena/results/"},
		{name: "bucket only", input: "s3://my-bucket", wantBucket: "my-bucket", wantKey: ""},
		{name: "wrong scheme", input: "https://bucket/key", wantErr: true},
		{name: "missing bucket", input: "s3:///key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3Path(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}
