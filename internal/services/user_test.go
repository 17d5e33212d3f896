package services

import (
	"context"
	"testing"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfileUsername(t *testing.T) {
	ctx := context.Background()

	newStore := func(updated **models.User) *fakeUserStore {
		return &fakeUserStore{
			getByIDFn: usersByID(&models.User{ID: "u1"}),
			updateFn: func(ctx context.Context, user *models.User) error {
				*updated = user
				return nil
			},
		}
	}

	t.Run("rejects an empty username", func(t *testing.T) {
		var updated *models.User
		svc := NewUserService(newStore(&updated), "secret")

		_, err := svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("   ")})

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		assert.Nil(t, updated)
	})

	t.Run("rejects disallowed characters", func(t *testing.T) {
		var updated *models.User
		svc := NewUserService(newStore(&updated), "secret")

		_, err := svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("ada lovelace")})

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	})

	t.Run("normalizes to lowercase", func(t *testing.T) {
		var updated *models.User
		svc := NewUserService(newStore(&updated), "secret")

		user, err := svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("  Ada_L ")})
		require.NoError(t, err)

		assert.Equal(t, "ada_l", user.Username)
		require.NotNil(t, updated)
		assert.Equal(t, "ada_l", updated.Username)
	})

	t.Run("surfaces a taken username", func(t *testing.T) {
		store := &fakeUserStore{
			getByIDFn: usersByID(&models.User{ID: "u1"}),
			updateFn: func(ctx context.Context, user *models.User) error {
				return apperrors.ErrUsernameTaken
			},
		}
		svc := NewUserService(store, "secret")

		_, err := svc.UpdateProfile(ctx, "u1", ProfileUpdate{Username: strPtr("ada")})
		assert.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	})
}

func TestSearchByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an empty query", func(t *testing.T) {
		called := false
		store := &fakeUserStore{searchByUsernameFn: func(ctx context.Context, prefix string) ([]*models.User, error) {
			called = true
			return nil, nil
		}}
		svc := NewUserService(store, "secret")

		_, err := svc.SearchByUsername(ctx, "viewer", "  ")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		assert.False(t, called)
	})

	t.Run("lowercases the query and excludes the searcher", func(t *testing.T) {
		var gotPrefix string
		store := &fakeUserStore{searchByUsernameFn: func(ctx context.Context, prefix string) ([]*models.User, error) {
			gotPrefix = prefix
			return []*models.User{
				{ID: "viewer", Username: "ada"},
				{ID: "other", Username: "adam"},
			}, nil
		}}
		svc := NewUserService(store, "secret")

		got, err := svc.SearchByUsername(ctx, "viewer", " Ada ")
		require.NoError(t, err)

		assert.Equal(t, "ada", gotPrefix)
		require.Len(t, got, 1)
		assert.Equal(t, "other", got[0].ID)
	})
}
