package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store pins metadata as content-addressed objects in an S3-compatible bucket (R2 in production).
type S3Store struct {
	client        *s3.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

func NewS3(ctx context.Context, cfg config.ContentConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		awsconfig.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load content store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		// attempts are governed by the caller's CallPolicy
		o.Retryer = aws.NopRetryer{}
	})
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        strings.Trim(cfg.KeyPrefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *S3Store) key(digest string) string {
	if s.prefix == "" {
		return digest + ".json"
	}
	return s.prefix + "/" + digest + ".json"
}

func (s *S3Store) address(key string) string {
	if s.publicBaseURL == "" {
		return "s3://" + s.bucket + "/" + key
	}
	return s.publicBaseURL + "/" + key
}

func (s *S3Store) Pin(ctx context.Context, policy rewards.CallPolicy, m Metadata) (string, error) {
	doc, err := m.Canonical()
	if err != nil {
		return "", err
	}
	key := s.key(Digest(doc))
	err = policy.Do(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(s.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(doc),
			ContentType:  aws.String("application/json"),
			CacheControl: aws.String("public, max-age=31536000, immutable"),
		})
		if err != nil {
			return classifyS3(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.address(key), nil
}

func classifyS3(err error) error {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		code := re.HTTPStatusCode()
		if code >= 400 && code < 500 && code != 408 && code != 429 {
			return rewards.Permanent(fmt.Errorf("content store put: %w", err))
		}
	}
	return fmt.Errorf("content store put: %w", err)
}
