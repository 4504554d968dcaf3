// Package objectstore fetches archive objects from an S3-compatible bucket,
// classifying failures into the NotFound/TransientNetwork/Fatal taxonomy and
// retrying TransientNetwork internally.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

// retryInterval is the fixed back-off between TransientNetwork retries,
// matching the source's "trying again in 10 seconds" loop. See the
// unbounded-retries open question in the design notes.
const retryInterval = 10 * time.Second

// Credentials is a snapshot of the two access-key fields of the source's
// three-line credential file; the aws_s3_path line is not carried.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// CredentialsProvider is injected into Client; the core depends only on
// this interface, not on any concrete credential-loading mechanism.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// getObjectAPI is the subset of *s3.Client Fetch depends on; satisfied by
// *s3.Client in production and by a fake in tests.
type getObjectAPI interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client fetches archive objects from a single S3-compatible bucket.
type Client struct {
	bucket        string
	creds         CredentialsProvider
	logger        *slog.Logger
	newS3         func(ctx context.Context, creds Credentials) (getObjectAPI, error)
	retryInterval time.Duration
}

// Config configures a Client's underlying AWS SDK session.
type Config struct {
	Bucket   string
	Region   string // defaults to eu-west-1 if empty
	Endpoint string // optional override for S3-compatible, non-AWS endpoints
}

// New constructs a Client. creds is consulted once per fetch, per the
// "no caching assumed" contract.
func New(cfg Config, creds CredentialsProvider, logger *slog.Logger) *Client {
	region := cfg.Region
	if region == "" {
		region = "eu-west-1"
	}

	return &Client{
		bucket:        cfg.Bucket,
		creds:         creds,
		logger:        logger,
		retryInterval: retryInterval,
		newS3: func(ctx context.Context, c Credentials) (getObjectAPI, error) {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
				awsconfig.WithRegion(region),
				awsconfig.WithCredentialsProvider(
					credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
				),
			)
			if err != nil {
				return nil, err
			}
			return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
				}
			}), nil
		},
	}
}

// Fetch returns the raw bytes of key. It retries internally, indefinitely,
// on TransientNetwork failures with a fixed 10-second back-off; it returns
// immediately on NotFound or Fatal.
func (c *Client) Fetch(ctx context.Context, key domain.ArchiveKey) ([]byte, error) {
	for {
		body, err := c.fetchOnce(ctx, key)
		if err == nil {
			return body, nil
		}

		if !domain.Is(err, domain.TransientNetwork) {
			return nil, err
		}

		c.logger.Error("object store fetch failed, retrying", "key", string(key), "error", err, "retryIn", c.retryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, key domain.ArchiveKey) ([]byte, error) {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return nil, domain.NewError(domain.Fatal, "objectstore.Fetch", fmt.Errorf("credentials: %w", err))
	}

	client, err := c.newS3(ctx, creds)
	if err != nil {
		return nil, domain.NewError(domain.Fatal, "objectstore.Fetch", fmt.Errorf("build client: %w", err))
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(string(key)),
	})
	if err != nil {
		return nil, classify(key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify(key, err)
	}
	return body, nil
}

// classify maps an AWS SDK error into the domain taxonomy.
func classify(key domain.ArchiveKey, err error) error {
	var nske *types.NoSuchKey
	if errors.As(err, &nske) {
		return domain.NewError(domain.NotFound, "objectstore.Fetch", fmt.Errorf("key %q: %w", key, err))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewError(domain.TransientNetwork, "objectstore.Fetch", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestTimeout", "SlowDown", "ServiceUnavailable", "InternalError":
			return domain.NewError(domain.TransientNetwork, "objectstore.Fetch", err)
		}
	}

	return domain.NewError(domain.Fatal, "objectstore.Fetch", err)
}
