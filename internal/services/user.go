package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserStore is the persistence surface the user service needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	DeleteByExternalID(ctx context.Context, externalID string) error
	SearchByUsername(ctx context.Context, prefix string) ([]*models.User, error)
}

// UserService handles user lifecycle and token validation. Users are
// created and deleted by the identity provider's webhook, never directly.
type UserService struct {
	userRepo  UserStore
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// ValidateJWT validates a bearer token issued by the identity provider and
// returns the external subject id.
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeNotAuthenticated, "failed to parse token", err)
	}
	if !token.Valid {
		return "", apperrors.NotAuthenticated("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperrors.NotAuthenticated("invalid token claims")
	}
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", apperrors.NotAuthenticated("token subject missing")
	}
	return subject, nil
}

// WebhookUser is the identity payload carried by provider webhook events.
type WebhookUser struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	ImageURL   *string
}

// CreateFromWebhook provisions a user on the provider's user.created event.
func (s *UserService) CreateFromWebhook(ctx context.Context, wu WebhookUser) (*models.User, error) {
	user := &models.User{
		ID:          uuid.New().String(),
		ExternalID:  wu.ExternalID,
		Email:       wu.Email,
		FirstName:   wu.FirstName,
		LastName:    wu.LastName,
		ImageURL:    wu.ImageURL,
		Recommended: []string{},
		IsOnboarded: false,
		CreatedAt:   s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateFromWebhook applies the provider's user.updated event. Onboarding
// state and profile attributes are owned locally and left untouched.
func (s *UserService) UpdateFromWebhook(ctx context.Context, wu WebhookUser) error {
	user, err := s.userRepo.GetByExternalID(ctx, wu.ExternalID)
	if err != nil {
		return err
	}
	if wu.Email != "" {
		user.Email = wu.Email
	}
	if wu.FirstName != "" {
		user.FirstName = wu.FirstName
	}
	if wu.LastName != "" {
		user.LastName = wu.LastName
	}
	if wu.ImageURL != nil {
		user.ImageURL = wu.ImageURL
	}
	return s.userRepo.Update(ctx, user)
}

// DeleteFromWebhook removes a user on the provider's user.deleted event.
func (s *UserService) DeleteFromWebhook(ctx context.Context, externalID string) error {
	return s.userRepo.DeleteByExternalID(ctx, externalID)
}

// GetByExternalID resolves the local user for an authenticated subject.
func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.userRepo.GetByExternalID(ctx, externalID)
}

// GetByID retrieves a user by their local id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ProfileUpdate carries the fields a user may edit; nil means unchanged.
type ProfileUpdate struct {
	Username    *string          `json:"username"`
	FirstName   *string          `json:"first_name"`
	LastName    *string          `json:"last_name"`
	Bio         *string          `json:"bio"`
	City        *string          `json:"city"`
	Country     *string          `json:"country"`
	Age         *int             `json:"age"`
	Gender      *string          `json:"gender"`
	Languages   []string         `json:"languages"`
	Interests   []string         `json:"interests"`
	Location    *models.Location `json:"location"`
	IsOnboarded *bool            `json:"is_onboarded"`
}

// UpdateProfile applies a partial profile edit.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.Age != nil && (*upd.Age < 13 || *upd.Age > 120) {
		return nil, apperrors.Validation("age must be between 13 and 120")
	}
	if upd.Username != nil {
		username, err := normalizeUsername(*upd.Username)
		if err != nil {
			return nil, err
		}
		user.Username = username
	}

	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.City != nil {
		user.City = *upd.City
	}
	if upd.Country != nil {
		user.Country = *upd.Country
	}
	if upd.Age != nil {
		user.Age = upd.Age
	}
	if upd.Gender != nil {
		user.Gender = *upd.Gender
	}
	if upd.Languages != nil {
		user.Languages = upd.Languages
	}
	if upd.Interests != nil {
		user.Interests = upd.Interests
	}
	if upd.Location != nil {
		user.Location = upd.Location
	}
	if upd.IsOnboarded != nil {
		user.IsOnboarded = *upd.IsOnboarded
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SearchByUsername finds onboarded users by username prefix so a user can
// start a connection with someone outside their recommendation triple. The
// searching user is never part of the result.
func (s *UserService) SearchByUsername(ctx context.Context, viewerID, query string) ([]*models.User, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, apperrors.Validation("username cannot be empty")
	}

	users, err := s.userRepo.SearchByUsername(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.ID == viewerID {
			continue
		}
		results = append(results, u)
	}
	return results, nil
}

// normalizeUsername lowercases and validates a username chosen during
// onboarding.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", apperrors.Validation("username cannot be empty")
	}
	if len(username) > 30 {
		return "", apperrors.Validation("username cannot exceed 30 characters")
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return "", apperrors.Validation("username may only contain letters, digits, '_', '.' and '-'")
		}
	}
	return username, nil
}

// UpdatePreferences replaces the user's matching preferences.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, prefs models.Preferences) (*models.User, error) {
	if prefs.MinAge > prefs.MaxAge {
		return nil, apperrors.Validation("min_age cannot exceed max_age")
	}
	if prefs.MaxDistanceKm < 0 {
		return nil, apperrors.Validation("max_distance_km cannot be negative")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Preferences = &prefs
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
