// Package storage stages recordings and transcription outputs in an
// S3-compatible bucket. Google Cloud Storage is reached through its XML
// interoperability API with HMAC keys, so the same client serves GCS and S3.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/meetscribe/minutes/internal/config"
	"github.com/meetscribe/minutes/internal/errors"
	"github.com/meetscribe/minutes/internal/httpclient"
)

const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"

	deleteConcurrency = 8
)

// UploadPrefix holds objects written through presigned browser uploads.
const UploadPrefix = "uploads/"

// Config holds the bucket location and credentials.
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// Scheme is used when rendering object URIs, "gs" unless set.
	Scheme       string
	UsePathStyle bool
}

// Object describes a stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Client wraps an S3 client bound to a single bucket.
type Client struct {
	s3      *awss3.Client
	presign *awss3.PresignClient
	bucket  string
	scheme  string
}

// NewClient creates a storage client from cfg.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = SchemeGCS
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpclient.NewInstrumentedClient(httpclient.DefaultTimeout)),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// GCS interop rejects the default CRC32 trailers
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Client{
		s3:      client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		scheme:  cfg.Scheme,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// URI returns the scheme://bucket/key form of key.
func (c *Client) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", c.scheme, c.bucket, key)
}

// ParseURI splits gs://bucket/key or s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || (scheme != SchemeGCS && scheme != SchemeS3) {
		return "", "", fmt.Errorf("invalid object URI %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object URI %q", uri)
	}
	return bucket, key, nil
}

// Upload writes body to key.
func (c *Client) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error {
	input := &awss3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to upload %s", key), "STORAGE_UPLOAD_FAILED", err)
	}
	return nil
}

// UploadBytes writes data to key.
func (c *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return c.Upload(ctx, key, bytes.NewReader(data), contentType)
}

// Download returns a reader for key. The caller closes it.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("object %s not found", key), "OBJECT_NOT_FOUND", "Upload the file again.")
		}
		return nil, errors.NewStorageError(fmt.Sprintf("failed to download %s", key), "STORAGE_DOWNLOAD_FAILED", err)
	}
	return out.Body, nil
}

// DownloadBytes reads key fully, refusing objects larger than maxBytes when maxBytes > 0.
func (c *Client) DownloadBytes(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	body, err := c.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := io.Reader(body)
	if maxBytes > 0 {
		reader = io.LimitReader(body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to read %s", key), "STORAGE_DOWNLOAD_FAILED", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errors.NewValidationError("recording exceeds the upload size limit", "FILE_TOO_LARGE", "Split the recording and try again.")
	}
	return data, nil
}

// Delete removes key. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !IsNotFound(err) {
		return errors.NewStorageError(fmt.Sprintf("failed to delete %s", key), "STORAGE_DELETE_FAILED", err)
	}
	return nil
}

// DeleteAll removes keys concurrently and returns the first failure.
func (c *Client) DeleteAll(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			return c.Delete(ctx, key)
		})
	}
	return g.Wait()
}

// List returns every object whose key starts with prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var objects []Object
	for {
		out, err := c.s3.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to list %s", prefix), "STORAGE_LIST_FAILED", err)
		}
		for _, obj := range out.Contents {
			o := Object{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return objects, nil
}

// PresignUpload returns a URL that lets a browser PUT key directly for ttl.
func (c *Client) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.NewStorageError("failed to sign upload URL", "STORAGE_PRESIGN_FAILED", err)
	}
	return req.URL, nil
}

// IsNotFound reports whether err is a missing-object response.
func IsNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if stderrors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var whitespace = regexp.MustCompile(`\s+`)

// UploadKey names a browser upload: uploads/<unix-ms>-<filename>, whitespace runs replaced by "_".
func UploadKey(filename string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s", UploadPrefix, now.UnixMilli(), whitespace.ReplaceAllString(filename, "_"))
}

// IsUploadKey reports whether key names an object under UploadPrefix.
// Keys with "." or ".." segments are rejected.
func IsUploadKey(key string) bool {
	return strings.HasPrefix(key, UploadPrefix) && len(key) > len(UploadPrefix) && path.Clean(key) == key
}

// ConfigFrom builds a storage Config from the service configuration. Custom
// endpoints other than GCS are treated as S3-compatible with path-style URLs.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Bucket:    cfg.StorageBucket,
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Scheme:    SchemeGCS,
	}
	if !strings.Contains(cfg.StorageEndpoint, "storage.googleapis.com") {
		c.Scheme = SchemeS3
		c.UsePathStyle = true
	}
	return c
}
