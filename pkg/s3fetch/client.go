// Package s3fetch opens claim files stored in S3.
package s3fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bigdatavik/databricks-struct-demo/pkg/logging"
	"github.com/bigdatavik/databricks-struct-demo/pkg/source"
)

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client fetches claim objects from S3.
type Client struct {
	api ObjectAPI
}

// NewClient creates a client using the default AWS configuration chain.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	return &Client{api: s3.NewFromConfig(cfg)}
}

// NewClientWithAPI creates a client around an existing S3 API
// implementation.
func NewClientWithAPI(api ObjectAPI) *Client {
	return &Client{api: api}
}

// StreamObject returns the body of an S3 object. The caller closes it.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// OpenClaims opens the claim file at an s3:// URI. An empty format is
// detected from the key.
func (c *Client) OpenClaims(ctx context.Context, uri string, format source.Format) (source.Reader, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	if format == "" {
		if format, err = source.DetectFormat(key); err != nil {
			return nil, err
		}
	}

	log := logging.FromContext(ctx)
	log.Debug().Str("bucket", bucket).Str("key", key).Str("format", string(format)).Msg("opening claims object")

	body, err := c.StreamObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return source.Open(body, key, format)
}
