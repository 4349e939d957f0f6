package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cv-tailor/internal/shared/storage/object"
	"cv-tailor/internal/shared/util"
)

// Options configures the S3 store. Endpoint and static keys are for S3-compatible stores such as R2 or MinIO.
type Options struct {
	Region    string
	Bucket    string
	Prefix    string
	KMSKeyID  string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Store implements object.Store using Amazon S3.
type Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	prefix   string
	kmsKeyID string
	// custom endpoints usually lack SSE support
	sse bool
}

// New creates a new S3-backed object store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   opts.Bucket,
		prefix:   normalizePrefix(opts.Prefix),
		kmsKeyID: strings.TrimSpace(opts.KMSKeyID),
		sse:      endpoint == "",
	}, nil
}

// Save uploads the reader contents under the owner's namespace. The content
// type is sniffed from the leading bytes.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (string, int64, string, error) {
	storageKey, err := util.ObjectKey("", ownerID, fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, "", fmt.Errorf("read upload: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if err := s.putBytes(ctx, storageKey, mimeType, data); err != nil {
		return "", 0, "", err
	}
	return storageKey, int64(len(data)), mimeType, nil
}

// Put uploads data to a specific storage key.
func (s *Store) Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read object body: %w", err)
	}
	if err := s.putBytes(ctx, storageKey, contentType, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// putBytes sends a fully buffered, seekable body so the SDK can sign the
// payload and retry even against plain-HTTP S3-compatible endpoints.
func (s *Store) putBytes(ctx context.Context, storageKey, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectKey := applyPrefix(s.prefix, storageKey)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	s.applySSE(input)

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectKey := applyPrefix(s.prefix, storageKey)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 treats missing keys as success.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	objectKey := applyPrefix(s.prefix, storageKey)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

// PresignUpload returns a presigned PUT for a direct browser upload.
func (s *Store) PresignUpload(ctx context.Context, ownerID, fileName, contentType string, ttl time.Duration) (object.PresignedUpload, error) {
	storageKey, err := util.ObjectKey("uploads", ownerID, fileName)
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("sanitize file name: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(applyPrefix(s.prefix, storageKey)),
		ContentType: aws.String(contentType),
	}
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return object.PresignedUpload{}, fmt.Errorf("presign put: %w", err)
	}

	headers := map[string]string{"Content-Type": contentType}
	for k, v := range req.SignedHeader {
		if len(v) > 0 && !strings.EqualFold(k, "host") {
			headers[k] = v[0]
		}
	}
	return object.PresignedUpload{
		StorageKey: storageKey,
		URL:        req.URL,
		Method:     req.Method,
		Headers:    headers,
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}, nil
}

// Stat returns size and content type of an uploaded object.
func (s *Store) Stat(ctx context.Context, storageKey string) (object.ObjectInfo, error) {
	objectKey := applyPrefix(s.prefix, storageKey)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return object.ObjectInfo{}, object.ErrNotFound
		}
		return object.ObjectInfo{}, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.ObjectInfo{
		SizeBytes:   aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (s *Store) applySSE(input *s3.PutObjectInput) {
	if !s.sse {
		return
	}
	if s.kmsKeyID != "" {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.kmsKeyID)
		return
	}
	input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var (
	_ object.Store     = (*Store)(nil)
	_ object.Presigner = (*Store)(nil)
)
