// Package pictures resolves picture references supplied during registration
// and profile updates. A reference is either an absolute URI (passed through
// unchanged) or an uploaded-file storage key, which is exchanged for a
// presigned object-storage URL. The upload itself goes through a presigned
// PUT issued by NewUploadURL.
package pictures

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mvrcrypto/customapi/internal/common"
	sc "github.com/mvrcrypto/customapi/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// seams for tests
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Resolver turns picture references into servable URIs.
type Resolver struct {
	config *sc.Config
}

func NewResolver(config *sc.Config) *Resolver {
	return &Resolver{config: config}
}

// RandomStorageKey produces a fresh object-storage key for an upload.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// IsStorageKey reports whether ref looks like an uploaded-file token rather
// than an external URI.
func IsStorageKey(ref string) bool {
	return strings.HasPrefix(ref, "users/")
}

// Resolve maps a picture reference to a URI:
//   - "" resolves to "" (no picture)
//   - absolute http(s) URIs pass through unchanged
//   - storage keys are exchanged for a presigned GET URL
//
// Anything else is common.ErrInvalidPictureRef.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return ref, nil
	}

	if IsStorageKey(ref) {
		return r.presignGet(ctx, ref)
	}

	return "", common.ErrInvalidPictureRef
}

// NewUploadURL issues a presigned PUT for a picture upload and returns the
// storage key the caller should later supply as its picture reference.
func (r *Resolver) NewUploadURL(ctx context.Context) (string, string, error) {
	presignClient, err := r.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := r.config.S3Bucket
	key := RandomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(r.config.PresignValidityDuration))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

func (r *Resolver) presignGet(ctx context.Context, key string) (string, error) {
	presignClient, err := r.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := r.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(r.config.PresignValidityDuration))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

func (r *Resolver) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(r.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			r.config.S3RootUser,
			r.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(r.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}
