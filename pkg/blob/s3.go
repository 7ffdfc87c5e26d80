package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds S3-compatible storage configuration for one disk.
type S3Config struct {
	Bucket    string `env:"S3_BUCKET" yaml:"bucket"`
	AccessKey string `env:"S3_ACCESS_KEY" yaml:"access_key"`
	SecretKey string `env:"S3_SECRET_KEY" yaml:"secret_key"`

	// Endpoint overrides the AWS endpoint for MinIO and other S3
	// compatibles; PathStyle is usually required with it.
	Endpoint  string `env:"S3_ENDPOINT" yaml:"endpoint"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1" yaml:"region"`
	PathStyle bool   `env:"S3_PATH_STYLE" yaml:"path_style"`
}

func (c *S3Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *S3Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

// S3Disk reads objects from one S3 bucket.
type S3Disk struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Disk creates an S3-backed disk.
func NewS3Disk(cfg S3Config) (*S3Disk, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3Disk{
		client: s3.New(s3.Options{}, opts...),
		cfg:    cfg,
	}, nil
}

func (d *S3Disk) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	return out.Body, nil
}
