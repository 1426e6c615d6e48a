package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dmchat/internal/pkg/errs"
)

func TestValidateAvatar(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		size     int64
		wantCode int
	}{
		{"png", "image/png", 1024, 0},
		{"uppercase jpeg", "IMAGE/JPEG", 1024, 0},
		{"empty file", "image/png", 0, errs.ErrInvalidParams},
		{"too large", "image/png", MaxAvatarSize + 1, errs.ErrFileSizeTooLarge},
		{"pdf", "application/pdf", 1024, errs.ErrInvalidMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAvatar(tt.mimeType, tt.size)
			if tt.wantCode == 0 {
				require.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			require.Equal(t, tt.wantCode, err.Code)
		})
	}
}

func TestAvatarKeyOwnership(t *testing.T) {
	req := require.New(t)

	key := AvatarKey(7, "image/webp")
	req.True(strings.HasPrefix(key, "avatars/7/"))
	req.True(strings.HasSuffix(key, ".webp"))
	req.NotEqual(key, AvatarKey(7, "image/webp"))

	req.True(OwnsKey(7, key))
	req.False(OwnsKey(70, key))
	req.False(OwnsKey(7, "avatars/7/"))
	req.False(OwnsKey(7, "avatars/7/../8/x.png"))
}

func TestKeyFromURL(t *testing.T) {
	req := require.New(t)

	req.Equal("avatars/1/a.png", KeyFromURL("https://cdn.example/", "https://cdn.example/avatars/1/a.png"))
	req.Empty(KeyFromURL("https://cdn.example", "https://elsewhere.example/avatars/1/a.png"))
	req.Empty(KeyFromURL("", "https://cdn.example/avatars/1/a.png"))
}
