package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ErrNoBucket is returned when an S3 uploader is created without a bucket.
var ErrNoBucket = errors.New("s3 bucket is not configured")

// S3Config holds the object storage settings. Credentials come from the
// standard AWS environment variables or shared config.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
}

// S3Uploader uploads snapshots to an S3 bucket.
type S3Uploader struct {
	config   S3Config
	uploader *s3manager.Uploader
}

// NewS3Uploader creates an uploader for the configured bucket.
func NewS3Uploader(config S3Config) (*S3Uploader, error) {
	if config.Bucket == "" {
		return nil, ErrNoBucket
	}

	awsCfg := aws.NewConfig()
	if config.Region != "" {
		awsCfg = awsCfg.WithRegion(config.Region)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &S3Uploader{
		config:   config,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Upload sends the snapshot file and returns the object URL.
func (u *S3Uploader) Upload(ctx context.Context, snap Snapshot) (string, error) {
	f, err := os.Open(snap.Path)
	if err != nil {
		return "", fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.config.Bucket),
		Key:         aws.String(u.Key(snap)),
		Body:        f,
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	return out.Location, nil
}

// Key returns the object key for a snapshot.
func (u *S3Uploader) Key(snap Snapshot) string {
	return path.Join(u.config.Prefix, snap.Name)
}
