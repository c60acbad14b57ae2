// Package archive stores raw upstream assets in S3.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putter is the subset of *s3.Client used by S3.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes objects under prefix in bucket.
type S3 struct {
	cl     putter
	bucket string
	prefix string
}

// NewS3 builds an S3 archive from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

func newS3(cl putter, bucket, prefix string) *S3 {
	return &S3{cl: cl, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a relative key.
func (a *S3) Key(key string) string {
	key = strings.TrimLeft(key, "/")
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// Put uploads body under the prefixed key.
func (a *S3) Put(ctx context.Context, key string, body []byte) error {
	full := a.Key(key)
	_, err := a.cl.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(full),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, full, err)
	}
	return nil
}
