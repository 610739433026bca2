package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ThumbnailWidth = 320

var (
	ErrTooLarge    = errors.New("attachment is too large")
	ErrInvalidData = errors.New("attachment is not valid base64")
)

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // S3 compatible endpoint, empty for AWS
	PublicURL string // base URL objects are served from
	MaxBytes  int64
}

// S3Store uploads message attachments to object storage.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewS3Store(ctx context.Context, cfg Config, log *zap.Logger) (*S3Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}, nil
}

// Decode turns the base64 file_data of a message into bytes, refusing
// anything over max decoded bytes. A data URL prefix is tolerated.
func Decode(data string, max int64) ([]byte, error) {
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}
	if max > 0 && int64(base64.StdEncoding.DecodedLen(len(data))) > max+2 {
		return nil, ErrTooLarge
	}
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidData
	}
	if max > 0 && int64(len(b)) > max {
		return nil, ErrTooLarge
	}
	return b, nil
}

func IsImage(fileType string) bool {
	return strings.Contains(fileType, "image")
}

// Extension picks the stored file extension: images become jpg, everything
// else is treated as recorded audio.
func Extension(fileType string) string {
	switch {
	case IsImage(fileType):
		return "jpg"
	case strings.Contains(fileType, "wav"):
		return "wav"
	}
	return "ogg"
}

// ObjectKey lays attachments out as uploads/<year>/<month>/<id>.<ext>.
func ObjectKey(now time.Time, id, fileType string) string {
	return fmt.Sprintf("uploads/%d/%d/%s.%s", now.Year(), int(now.Month()), id, Extension(fileType))
}

// URL is the public address of key.
func (s *S3Store) URL(key string) string {
	switch {
	case s.cfg.PublicURL != "":
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	case s.cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}

// Upload stores data and returns its public URL. Photos also get a
// thumbnail next to the original; a failed thumbnail is only logged.
func (s *S3Store) Upload(ctx context.Context, data []byte, fileType string) (string, error) {
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	key := ObjectKey(s.now(), uuid.New().String(), fileType)
	if err := s.put(ctx, key, fileType, data); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	if IsImage(fileType) {
		thumb, err := Thumbnail(data)
		if err == nil {
			err = s.put(ctx, key+"_thumb.jpg", "image/jpeg", thumb)
		}
		if err != nil {
			s.log.Warn("thumbnail skipped", zap.String("key", key), zap.Error(err))
		}
	}
	return s.URL(key), nil
}

// Delete removes an object previously returned by Upload, together with
// its thumbnail.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.Key(url)
	if !ok {
		return fmt.Errorf("delete %s: not in bucket %s", url, s.cfg.Bucket)
	}
	keys := []string{key}
	if strings.HasSuffix(key, ".jpg") {
		keys = append(keys, key+"_thumb.jpg")
	}
	for _, k := range keys {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(k),
		}); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

// Key is the inverse of URL.
func (s *S3Store) Key(url string) (string, bool) {
	prefix := s.URL("")
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return url[len(prefix):], true
}

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

// Thumbnail scales an image down to ThumbnailWidth and encodes it as JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
