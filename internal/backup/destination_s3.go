package backup

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Destination stores archives in S3 or any S3-compatible object store.
type S3Destination struct {
	cfg    DestinationConfig
	client *s3.S3
}

// NewS3Destination creates an S3 destination.
func NewS3Destination(cfg DestinationConfig) (*S3Destination, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.S3AccessKey, cfg.S3SecretKey, ""),
	}
	// Custom endpoint covers MinIO and other S3-compatible stores.
	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	slog.Info("s3 backup destination ready", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
	return &S3Destination{cfg: cfg, client: s3.New(sess)}, nil
}

func (d *S3Destination) Store(name string, r io.Reader, sizeBytes int64) error {
	key := path.Join(d.cfg.Path, name)

	// PutObject needs a seekable body, so the archive is buffered.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	_, err = d.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(d.cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3: %w", err)
	}
	slog.Info("backup uploaded", "key", key, "bytes", len(data))
	return nil
}

func (d *S3Destination) Retrieve(name string, w io.Writer) error {
	key := path.Join(d.cfg.Path, name)

	result, err := d.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(d.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object from s3: %w", err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(w, result.Body); err != nil {
		return fmt.Errorf("failed to read s3 object: %w", err)
	}
	return nil
}

func (d *S3Destination) Delete(name string) error {
	key := path.Join(d.cfg.Path, name)
	_, err := d.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from s3: %w", err)
	}
	return nil
}

func (d *S3Destination) List() ([]File, error) {
	prefix := d.cfg.Path
	if prefix != "" {
		prefix += "/"
	}

	result, err := d.client.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket: aws.String(d.cfg.S3Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3 objects: %w", err)
	}

	var files []File
	for _, obj := range result.Contents {
		if *obj.Key == prefix {
			continue
		}
		files = append(files, File{
			Name:      path.Base(*obj.Key),
			SizeBytes: *obj.Size,
			CreatedAt: *obj.LastModified,
		})
	}
	return files, nil
}

func (d *S3Destination) Type() string { return "s3" }
