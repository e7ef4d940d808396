// Package storage reads the log archive from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"log-manager/internal/domain"
)

// S3Config locates the archive bucket.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint is an optional custom endpoint for S3-compatible services.
	Endpoint     string
	UsePathStyle bool
	// KeyID and Secret select static credentials. When empty the default
	// AWS credential chain is used.
	KeyID  string
	Secret string
}

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store implements domain.ObjectStore over one bucket.
type S3Store struct {
	client s3API
	bucket string
}

var _ domain.ObjectStore = (*S3Store)(nil)

// NewS3Store creates an S3Store from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	var endpoint *string
	if cfg.Endpoint != "" {
		ep := cfg.Endpoint
		if !strings.Contains(ep, "://") {
			ep = "https://" + ep
		}
		endpoint = aws.String(ep)
	}

	if cfg.KeyID != "" {
		client := s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.KeyID, cfg.Secret, "",
			),
			BaseEndpoint: endpoint,
			UsePathStyle: cfg.UsePathStyle,
		})
		return newS3Store(client, cfg.Bucket), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = endpoint
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3Store(client, cfg.Bucket), nil
}

func newS3Store(client s3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Bucket returns the configured bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// List returns up to maxKeys objects under prefix, following continuation
// tokens. maxKeys <= 0 lists everything.
func (s *S3Store) List(ctx context.Context, prefix string, maxKeys int) ([]domain.ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if maxKeys > 0 && maxKeys < 1000 {
		in.MaxKeys = aws.Int32(int32(maxKeys))
	}

	var out []domain.ObjectInfo
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			out = append(out, info)
			if maxKeys > 0 && len(out) >= maxKeys {
				return out, nil
			}
		}
	}
	return out, nil
}

// Get opens the object body. A missing key is a *domain.NotFoundError.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrNotFound("object s3://%s/%s not found", s.bucket, key)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return resp.Body, nil
}

// ParseS3Path splits an s3:// URI into bucket and key.
func ParseS3Path(s3Path string) (bucket, key string, err error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", s3Path, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, s3Path)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty bucket in S3 path %q", s3Path)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
