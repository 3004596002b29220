// Package blob uploads published images to S3-compatible object storage and
// derives their public URLs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"caseflow/internal/config"
)

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client writes objects into a single bucket and knows the public base URL
// they are served from.
type Client struct {
	api        PutObjectAPI
	bucket     string
	publicBase string
}

// New builds a Client from the blob configuration section.
func New(ctx context.Context, cfg config.Blob) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob client: bucket is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("blob client: public base url is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("blob client: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithAPI(api, cfg.Bucket, cfg.PublicBaseURL), nil
}

// NewWithAPI wires an explicit S3 API implementation. Used by tests.
func NewWithAPI(api PutObjectAPI, bucket, publicBaseURL string) *Client {
	return &Client{
		api:        api,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Put uploads body under key and returns the public URL the object is served
// from. Object writes overwrite in place, so re-publishing the same key is
// harmless.
func (c *Client) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("blob put: key is empty")
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("blob put %s: %w", key, err)
	}
	return c.PublicURL(key), nil
}

// PublicURL returns the serving URL for an object key.
func (c *Client) PublicURL(key string) string {
	return c.publicBase + "/" + strings.TrimLeft(key, "/")
}
