/*
Package storage holds avatar images in S3-compatible object storage.
*/
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"dmchat/internal/pkg/errs"
)

const (
	// MaxAvatarSizeMB is the maximum allowed avatar size in megabytes.
	MaxAvatarSizeMB = 5

	// MaxAvatarSize is the maximum allowed avatar size in bytes.
	MaxAvatarSize = MaxAvatarSizeMB * 1024 * 1024

	// PresignedURLDuration is how long an upload URL stays valid.
	PresignedURLDuration = 5 * time.Minute

	avatarPrefix = "avatars"
)

// AllowedMIMETypes maps each permitted avatar MIME type to the object key extension.
var AllowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// PublicBaseURL prefixes object keys to form the URL stored as a user's avatar.
	PublicBaseURL string
}

// StorageService defines the public interface for the avatar storage service.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading an object.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// Upload streams body into the object stored under key.
	Upload(ctx context.Context, key string, mimeType string, body io.Reader) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object specified by the given key.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the externally reachable URL of key.
	PublicURL(key string) string
}

// NewStorageService is the factory function for StorageService.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(ctx, cfg)
}

// ValidateAvatar checks the declared MIME type and size of an avatar upload.
func ValidateAvatar(mimeType string, fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAvatarSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	if _, ok := AllowedMIMETypes[strings.ToLower(mimeType)]; !ok {
		return errs.NewError(errs.ErrInvalidMimeType)
	}

	return nil
}

// AvatarKey returns a fresh object key for an avatar of userID.
// mimeType must already have passed ValidateAvatar.
func AvatarKey(userID int64, mimeType string) string {
	ext := AllowedMIMETypes[strings.ToLower(mimeType)]
	return fmt.Sprintf("%s/%d/%s%s", avatarPrefix, userID, uuid.New().String(), ext)
}

// OwnsKey reports whether key lies in the avatar namespace of userID.
func OwnsKey(userID int64, key string) bool {
	prefix := fmt.Sprintf("%s/%d/", avatarPrefix, userID)
	return strings.HasPrefix(key, prefix) && len(key) > len(prefix) && !strings.Contains(key, "..")
}

// KeyFromURL recovers the object key from a URL built by PublicURL.
// It returns "" when url does not start with baseURL.
func KeyFromURL(baseURL, url string) string {
	base := strings.TrimRight(baseURL, "/") + "/"
	if baseURL == "" || !strings.HasPrefix(url, base) {
		return ""
	}
	return strings.TrimPrefix(url, base)
}
