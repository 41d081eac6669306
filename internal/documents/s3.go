package documents

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// S3Source keeps résumés in an S3-compatible bucket.
type S3Source struct {
	client *minio.Client
	bucket string
	region string
}

// NewS3Source connects to the bucket described by cfg.
func NewS3Source(_ context.Context, cfg config.S3Config) (*S3Source, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, eris.New("documents: s3 endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "documents: create s3 client")
	}
	return &S3Source{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3Source) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return eris.Wrapf(err, "documents: check bucket %s", s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return eris.Wrapf(err, "documents: create bucket %s", s.bucket)
	}
	zap.L().Info("created document bucket", zap.String("bucket", s.bucket))
	return nil
}

// Read downloads the object stored under key.
func (s *S3Source) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, key)
	}
	defer obj.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(obj, MaxSize+1))
	if err != nil {
		return nil, s.wrap(err, key)
	}
	if len(data) > MaxSize {
		return nil, eris.Wrapf(ErrTooLarge, "%s", key)
	}
	return data, nil
}

// Put uploads data under key.
func (s *S3Source) Put(ctx context.Context, key string, data []byte) error {
	if len(data) > MaxSize {
		return eris.Wrapf(ErrTooLarge, "%s", key)
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return s.wrap(err, key)
	}
	return nil
}

func (s *S3Source) wrap(err error, key string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return eris.Wrapf(ErrNotFound, "s3://%s/%s", s.bucket, key)
	}
	return eris.Wrapf(err, "documents: s3://%s/%s", s.bucket, key)
}
