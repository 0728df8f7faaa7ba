package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/arbolado/treeregistry/internal/common"
	"github.com/arbolado/treeregistry/internal/server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in)
	}
	copyObject = func(c *s3.Client, ctx context.Context, in *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
		return c.CopyObject(ctx, in)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
	putObjectACL = func(c *s3.Client, ctx context.Context, in *s3.PutObjectAclInput) (*s3.PutObjectAclOutput, error) {
		return c.PutObjectAcl(ctx, in)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Config carries the settings for the S3-compatible backend (MinIO in
// development).
type S3Config struct {
	User          string
	Password      string
	Bucket        string
	Region        string
	BaseEndpoint  string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// S3Store implements Store over an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Store builds the S3 client with static credentials and a path-style
// endpoint, the layout MinIO serves buckets under.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.User,
			cfg.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, cfg: cfg}, nil
}

// PublicRefFor derives the public reference for a private one: the trailing
// path segment of the private reference placed under the public prefix.
// The rule is deterministic so a record's public URL can be computed without
// a storage round trip once relocation is known to have occurred.
func PublicRefFor(privateRef string) string {
	return models.PublicPrefix + path.Base(privateRef)
}

func (s *S3Store) exists(ctx context.Context, ref string) (bool, error) {
	_, err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &ref,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Relocate moves the object from privateRef to its public reference.
// S3 has no server-side move, so this is copy-then-delete; the window where
// both copies exist closes before the call returns. A source that is already
// gone is accepted when the destination is present, which makes a retry
// after a prior partial run succeed instead of reporting a missing blob.
func (s *S3Store) Relocate(ctx context.Context, privateRef string) (string, error) {
	publicRef := PublicRefFor(privateRef)

	srcExists, err := s.exists(ctx, privateRef)
	if err != nil {
		return "", fmt.Errorf("%w: head %s: %v", common.ErrBlobRelocationFailed, privateRef, err)
	}

	if !srcExists {
		dstExists, err := s.exists(ctx, publicRef)
		if err != nil {
			return "", fmt.Errorf("%w: head %s: %v", common.ErrBlobRelocationFailed, publicRef, err)
		}
		if dstExists {
			// Already relocated by a previous run.
			return publicRef, nil
		}
		return "", fmt.Errorf("%w: %s", common.ErrBlobNotFound, privateRef)
	}

	copySource := s.cfg.Bucket + "/" + privateRef
	if _, err := copyObject(s.client, ctx, &s3.CopyObjectInput{
		Bucket:     &s.cfg.Bucket,
		Key:        &publicRef,
		CopySource: &copySource,
	}); err != nil {
		return "", fmt.Errorf("%w: copy %s: %v", common.ErrBlobRelocationFailed, privateRef, err)
	}

	if _, err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &privateRef,
	}); err != nil {
		// Both copies exist at this point; the move is not complete until
		// the private one is gone.
		return "", fmt.Errorf("%w: delete %s: %v", common.ErrBlobRelocationFailed, privateRef, err)
	}

	return publicRef, nil
}

// SetPublic marks the object publicly readable.
func (s *S3Store) SetPublic(ctx context.Context, ref string) error {
	if _, err := putObjectACL(s.client, ctx, &s3.PutObjectAclInput{
		Bucket: &s.cfg.Bucket,
		Key:    &ref,
		ACL:    types.ObjectCannedACLPublicRead,
	}); err != nil {
		return fmt.Errorf("%w: acl %s: %v", common.ErrBlobRelocationFailed, ref, err)
	}
	return nil
}

// PublicURL returns the permanent URL of a public object.
func (s *S3Store) PublicURL(ref string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + s.cfg.Bucket + "/" + ref
}

// PresignPut returns a short-lived upload URL for ref.
func (s *S3Store) PresignPut(ctx context.Context, ref string) (string, error) {
	req, err := presignPutObject(newS3PresignClient(s.client), ctx, &s3.PutObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &ref,
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignGet returns a short-lived download URL for ref.
func (s *S3Store) PresignGet(ctx context.Context, ref string) (string, error) {
	req, err := presignGetObject(newS3PresignClient(s.client), ctx, &s3.GetObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &ref,
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
