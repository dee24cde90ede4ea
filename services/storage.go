package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/campusride/api-go/config"
	"github.com/campusride/api-go/utils"
	"github.com/google/uuid"
)

const (
	UploadPurposeItem     = "item"
	UploadPurposeActivity = "activity"
	UploadPurposeAvatar   = "avatar"

	UploadURLExpiry = time.Hour
	maxImageSize    = 10 * 1024 * 1024
	maxAvatarSize   = 5 * 1024 * 1024
)

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ObjectStorage is the bucket behind user uploads.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	Head(ctx context.Context, key string) (size int64, found bool, err error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// R2Storage talks to Cloudflare R2 through its S3-compatible API.
type R2Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

func NewR2Storage(cfg config.R2Config) *R2Storage {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:       cfg.Region,
	})
	return &R2Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

func (r *R2Storage) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	req, err := r.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

func (r *R2Storage) Head(ctx context.Context, key string) (int64, bool, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), true, nil
}

func (r *R2Storage) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (r *R2Storage) PublicURL(key string) string {
	return r.publicURL + "/" + key
}

type PresignInput struct {
	FileName    string `json:"fileName" binding:"required,max=255"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required,min=1"`
	Purpose     string `json:"purpose" binding:"required,oneof=item activity avatar"`
}

type PresignedUpload struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

type UploadInfo struct {
	Key      string `json:"key"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
}

// UploadService hands out presigned URLs so clients upload images straight to the bucket.
// A nil storage disables uploads.
type UploadService struct {
	storage ObjectStorage
}

func NewUploadService(storage ObjectStorage) *UploadService {
	return &UploadService{storage: storage}
}

func (s *UploadService) Enabled() bool {
	return s.storage != nil
}

func errUploadsDisabled() error {
	return utils.NewAppError(http.StatusServiceUnavailable, utils.CodeServiceUnavailable, "File uploads are not configured")
}

func validateUpload(in PresignInput) error {
	if !imageContentTypes[strings.ToLower(in.ContentType)] {
		return utils.NewValidationError("Only JPEG, PNG, WebP and GIF images are allowed")
	}
	limit := int64(maxImageSize)
	if in.Purpose == UploadPurposeAvatar {
		limit = maxAvatarSize
	}
	if in.FileSize <= 0 || in.FileSize > limit {
		return utils.NewValidationError(fmt.Sprintf("File size must be at most %dMB", limit/(1024*1024)))
	}
	switch in.Purpose {
	case UploadPurposeItem, UploadPurposeActivity, UploadPurposeAvatar:
		return nil
	}
	return utils.NewValidationError("purpose must be one of item, activity, avatar")
}

// uploadKey lays keys out as {purpose}s/{userID}/{uuid}{ext}.
func uploadKey(userID, purpose, fileName string) string {
	return fmt.Sprintf("%ss/%s/%s%s", purpose, userID, uuid.NewString(), strings.ToLower(filepath.Ext(fileName)))
}

func ownsKey(key, userID string) bool {
	parts := strings.Split(key, "/")
	return len(parts) == 3 && parts[1] == userID && !strings.Contains(key, "..")
}

func (s *UploadService) Presign(ctx context.Context, userID string, in PresignInput) (*PresignedUpload, error) {
	if !s.Enabled() {
		return nil, errUploadsDisabled()
	}
	if err := validateUpload(in); err != nil {
		return nil, err
	}
	key := uploadKey(userID, in.Purpose, in.FileName)
	url, err := s.storage.PresignPut(ctx, key, in.ContentType, UploadURLExpiry)
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{
		UploadURL: url,
		FileURL:   s.storage.PublicURL(key),
		Key:       key,
		ExpiresIn: int(UploadURLExpiry.Seconds()),
	}, nil
}

// Confirm checks that the client finished uploading the object.
func (s *UploadService) Confirm(ctx context.Context, userID, key string) (*UploadInfo, error) {
	if !s.Enabled() {
		return nil, errUploadsDisabled()
	}
	if !ownsKey(key, userID) {
		return nil, utils.NewForbidden("You can only access your own uploads")
	}
	size, found, err := s.storage.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, utils.NewNotFound("File")
	}
	return &UploadInfo{Key: key, FileURL: s.storage.PublicURL(key), FileSize: size}, nil
}

func (s *UploadService) Delete(ctx context.Context, userID, key string) error {
	if !s.Enabled() {
		return errUploadsDisabled()
	}
	if !ownsKey(key, userID) {
		return utils.NewForbidden("You can only delete your own uploads")
	}
	return s.storage.Delete(ctx, key)
}
