package services

import (
	"context"
	"strings"
	"testing"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(t *testing.T, store *fakeUserStore) *MediaService {
	t.Helper()
	svc, err := NewMediaService(store, "eu-west-1", "chrona-media", "test-key", "test-secret", "")
	require.NoError(t, err)
	return svc
}

func TestGetPresignedUploadURL(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unsupported content types", func(t *testing.T) {
		svc := newTestMediaService(t, &fakeUserStore{})
		_, err := svc.GetPresignedUploadURL(ctx, "u1", "image/gif")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	})

	t.Run("does not touch the profile before the upload is confirmed", func(t *testing.T) {
		updated := false
		store := &fakeUserStore{
			getByIDFn: usersByID(&models.User{ID: "u1"}),
			updateFn: func(ctx context.Context, user *models.User) error {
				updated = true
				return nil
			},
		}
		svc := newTestMediaService(t, store)

		resp, err := svc.GetPresignedUploadURL(ctx, "u1", "image/jpeg")
		require.NoError(t, err)

		assert.False(t, updated, "presign alone must not persist an image URL")
		assert.True(t, strings.HasPrefix(resp.Key, "profiles/u1/"))
		assert.Contains(t, resp.ImageURL, resp.Key)
		assert.NotEmpty(t, resp.UploadURL)
		assert.Equal(t, 300, resp.ExpiresIn)
	})
}

func TestConfirmUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the image URL for an issued key", func(t *testing.T) {
		var updated *models.User
		store := &fakeUserStore{
			getByIDFn: usersByID(&models.User{ID: "u1"}),
			updateFn: func(ctx context.Context, user *models.User) error {
				updated = user
				return nil
			},
		}
		svc := newTestMediaService(t, store)

		imageURL, err := svc.ConfirmUpload(ctx, "u1", "profiles/u1/abc123")
		require.NoError(t, err)

		assert.Contains(t, imageURL, "profiles/u1/abc123")
		require.NotNil(t, updated)
		require.NotNil(t, updated.ImageURL)
		assert.Equal(t, imageURL, *updated.ImageURL)
	})

	t.Run("rejects a key issued for another user", func(t *testing.T) {
		updated := false
		store := &fakeUserStore{
			getByIDFn: usersByID(&models.User{ID: "u1"}),
			updateFn: func(ctx context.Context, user *models.User) error {
				updated = true
				return nil
			},
		}
		svc := newTestMediaService(t, store)

		_, err := svc.ConfirmUpload(ctx, "u1", "profiles/u2/abc123")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		assert.False(t, updated)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := newTestMediaService(t, &fakeUserStore{})
		_, err := svc.ConfirmUpload(ctx, "ghost", "profiles/ghost/abc123")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}
