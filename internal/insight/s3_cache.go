package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// S3Options configures an S3 or S3-compatible (MinIO) insight store
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Cache stores one JSON object per receipt under a key prefix
type S3Cache struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Cache builds an S3 client from the options
func NewS3Cache(ctx context.Context, opts S3Options) (*S3Cache, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Cache{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (c *S3Cache) key(id string) string {
	return c.prefix + id + fileCacheExt
}

// Get downloads the result for a receipt
func (c *S3Cache) Get(ctx context.Context, id string) (*Result, bool, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(id)),
	})
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.External("s3", fmt.Errorf("getting insight %s: %w", id, err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, apperr.External("s3", fmt.Errorf("reading insight %s: %w", id, err))
	}
	r, err := decodeResult(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding insight %s: %w", id, err)
	}
	return r, true, nil
}

// Put uploads the result, replacing any existing object
func (c *S3Cache) Put(ctx context.Context, id string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling insight: %w", err)
	}
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return apperr.External("s3", fmt.Errorf("putting insight %s: %w", id, err))
	}
	return nil
}

// Delete removes the object; S3 reports success for missing keys
func (c *S3Cache) Delete(ctx context.Context, id string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return apperr.External("s3", fmt.Errorf("deleting insight %s: %w", id, err))
	}
	return nil
}

// All downloads every insight under the prefix, skipping unreadable objects
func (c *S3Cache) All(ctx context.Context) ([]*Result, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(keys))
	for _, id := range keys {
		r, ok, err := c.Get(ctx, id)
		if errors.Is(err, apperr.ErrMalformedJSON) {
			slog.Warn("Skipping unreadable insight", "id", id, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// Keys lists receipt IDs by walking the bucket prefix
func (c *S3Cache) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apperr.External("s3", fmt.Errorf("listing insights: %w", err))
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), c.prefix)
			if !strings.HasSuffix(name, fileCacheExt) || strings.Contains(name, "/") {
				continue
			}
			keys = append(keys, strings.TrimSuffix(name, fileCacheExt))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
