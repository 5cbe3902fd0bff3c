package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appconfig "github.com/semmidev/arxivsync/internal/config"
	"github.com/semmidev/arxivsync/internal/domain"
)

var _ domain.ObjectStore = (*S3Storage)(nil)

// S3API is the part of *s3.Client the store calls directly; tests supply a fake.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

const (
	DefaultCallTimeout   = 30 * time.Second
	DefaultUploadTimeout = 2 * time.Minute

	// S3 caps all user metadata at 2 KB per object.
	maxMetadataValueBytes = 1024
)

type S3Storage struct {
	client   S3API
	uploader Uploader
	bucket   string

	// callTimeout bounds HEAD, List and Delete requests; uploadTimeout bounds Put.
	callTimeout   time.Duration
	uploadTimeout time.Duration
}

// NewS3 creates an S3Storage using AWS SDK v2. Static credentials are used when an
// access key is configured, the default credential chain otherwise.
func NewS3(ctx context.Context, cfg *appconfig.StoreConfig) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := NewS3WithClient(client, s3manager.NewUploader(client), cfg.Bucket)
	return store.WithTimeouts(cfg.Timeout, cfg.UploadTimeout), nil
}

func NewS3WithClient(client S3API, uploader Uploader, bucket string) *S3Storage {
	return &S3Storage{
		client:        client,
		uploader:      uploader,
		bucket:        bucket,
		callTimeout:   DefaultCallTimeout,
		uploadTimeout: DefaultUploadTimeout,
	}
}

// WithTimeouts overrides the per-request deadlines. Non-positive values keep the defaults.
func (s *S3Storage) WithTimeouts(call, upload time.Duration) *S3Storage {
	if call > 0 {
		s.callTimeout = call
	}
	if upload > 0 {
		s.uploadTimeout = upload
	}
	return s
}

// Exists issues a HEAD request. Not-found answers map to (false, nil).
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	_, err := s.client.HeadObject(reqCtx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: head %s: %v", domain.ErrStoreOperation, key, err)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func (s *S3Storage) Put(ctx context.Context, obj domain.PutObject) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	_, err := s.uploader.Upload(reqCtx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Body))),
		Metadata:      headerMetadata(obj.Metadata),
	})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", domain.ErrStoreOperation, obj.Key, err)
	}
	return nil
}

// WalkPages follows ListObjectsV2 continuation tokens until the listing is exhausted.
func (s *S3Storage) WalkPages(ctx context.Context, prefix string, pageSize int, fn func(page []domain.StoredObject) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(o *s3.ListObjectsV2PaginatorOptions) {
		o.Limit = int32(pageSize)
	})

	for paginator.HasMorePages() {
		out, err := s.nextPage(ctx, paginator)
		if err != nil {
			return fmt.Errorf("%w: list %q: %v", domain.ErrStoreOperation, prefix, err)
		}

		page := make([]domain.StoredObject, 0, len(out.Contents))
		for _, obj := range out.Contents {
			page = append(page, domain.StoredObject{
				Key:          aws.ToString(obj.Key),
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
			})
		}

		if err := fn(page); err != nil {
			return err
		}
	}

	return nil
}

func (s *S3Storage) nextPage(ctx context.Context, paginator *s3.ListObjectsV2Paginator) (*s3.ListObjectsV2Output, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return paginator.NextPage(reqCtx)
}

// DeleteBatch removes up to 1000 keys in one DeleteObjects call and reports the
// per-key result. err is set only when the call itself failed.
func (s *S3Storage) DeleteBatch(ctx context.Context, keys []string) ([]string, []domain.KeyError, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	out, err := s.client.DeleteObjects(reqCtx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: delete %d objects: %v", domain.ErrStoreOperation, len(keys), err)
	}

	deleted := make([]string, 0, len(out.Deleted))
	for _, d := range out.Deleted {
		deleted = append(deleted, aws.ToString(d.Key))
	}

	failed := make([]domain.KeyError, 0, len(out.Errors))
	for _, e := range out.Errors {
		failed = append(failed, domain.KeyError{
			Key:    aws.ToString(e.Key),
			Reason: fmt.Sprintf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message)),
		})
	}

	return deleted, failed, nil
}

// headerMetadata makes metadata values safe for x-amz-meta-* headers. Values that are
// not plain ASCII are RFC 2047 Q-encoded, and runes are dropped from the end until the
// encoded form fits maxMetadataValueBytes.
func headerMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = headerValue(v)
	}
	return out
}

func headerValue(v string) string {
	for {
		encoded := v
		if !isPrintableASCII(v) {
			encoded = mime.QEncoding.Encode("utf-8", v)
		}
		if len(encoded) <= maxMetadataValueBytes || v == "" {
			return encoded
		}
		_, size := utf8.DecodeLastRuneInString(v)
		v = v[:len(v)-size]
	}
}

func isPrintableASCII(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < 0x20 || v[i] > 0x7e {
			return false
		}
	}
	return true
}
