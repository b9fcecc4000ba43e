package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
)

// Object-key prefixes for the source-document lifecycle.
const (
	PrefixUnprocessed = "unprocessed/"
	PrefixProcessed   = "processed/"
	PrefixErrored     = "errored/"
)

// Client wraps the S3 API with the narrow object-store capability the
// pipeline needs. It targets R2 via a custom endpoint but works against any
// S3-compatible store.
type Client struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

func New(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = true
	})
	return &Client{client: c, bucket: cfg.Bucket, logger: logger}, nil
}

// Fetch downloads an object's full content. A missing key returns
// ErrNotFound.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.NewAppError("STORAGE_NOT_FOUND", "object "+key, common.ErrNotFound)
		}
		return nil, common.NewAppError("STORAGE_GET", "fetch "+key, common.ErrDependency)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("storage.body_close_error", "key", key, "error", err)
		}
	}(out.Body)

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, common.NewAppError("STORAGE_READ", "read "+key, common.ErrDependency)
	}
	c.logger.Debug("storage.fetched", "key", key, "bytes", len(data))
	return data, nil
}

// Move copies the object under destPrefix (keeping its base name) and
// deletes the original. S3 has no rename, so the copy must succeed before
// the delete runs; a failed delete leaves a duplicate, never a loss.
func (c *Client) Move(ctx context.Context, key, destPrefix string) error {
	base := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		base = key[i+1:]
	}
	destKey := destPrefix + base

	_, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		CopySource: aws.String(c.bucket + "/" + key),
		Key:        aws.String(destKey),
	})
	if err != nil {
		c.logger.Error("storage.copy_failed", "key", key, "dest", destKey, "error", err)
		return common.NewAppError("STORAGE_COPY", "copy "+key, common.ErrDependency)
	}
	_, err = c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.logger.Error("storage.delete_failed", "key", key, "error", err)
		return common.NewAppError("STORAGE_DELETE", "delete "+key, common.ErrDependency)
	}
	c.logger.Info("storage.moved", "key", key, "dest", destKey)
	return nil
}

// List returns all keys under a prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, common.NewAppError("STORAGE_LIST", "list "+prefix, common.ErrDependency)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}
