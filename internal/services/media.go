package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const uploadURLExpiry = 5 * time.Minute

// MediaService issues pre-signed upload URLs for profile images and records
// the public URL on the user once the client confirms the upload.
type MediaService struct {
	userRepo UserStore
	s3Client *s3.Client
	s3Bucket string
	region   string
}

// NewMediaService creates a new media service
func NewMediaService(
	userRepo UserStore,
	region, bucket, accessKey, secretKey, endpoint string,
) (*MediaService, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &MediaService{
		userRepo: userRepo,
		s3Client: s3Client,
		s3Bucket: bucket,
		region:   region,
	}, nil
}

// UploadResponse carries a pre-signed PUT URL, the object key to confirm
// with once the upload succeeds, and the public URL the image will resolve
// to after upload.
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	ImageURL  string `json:"image_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetPresignedUploadURL generates a pre-signed URL for uploading a profile
// image. The user's profile is untouched until ConfirmUpload; an abandoned
// upload never leaves the profile pointing at a missing object.
func (s *MediaService) GetPresignedUploadURL(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	if contentType != "image/jpeg" && contentType != "image/png" {
		return nil, apperrors.Validation("content type must be image/jpeg or image/png")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("profiles/%s/%s", user.ID, uuid.New().String())

	presignClient := s3.NewPresignClient(s.s3Client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = uploadURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	return &UploadResponse{
		UploadURL: request.URL,
		Key:       key,
		ImageURL:  s.publicURL(key),
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}

// ConfirmUpload records the uploaded image on the user's profile. The key
// must be one previously issued for this user.
func (s *MediaService) ConfirmUpload(ctx context.Context, userID, key string) (string, error) {
	if !strings.HasPrefix(key, "profiles/"+userID+"/") {
		return "", apperrors.Validation("key was not issued for this user")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	imageURL := s.publicURL(key)
	user.ImageURL = &imageURL
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", err
	}
	return imageURL, nil
}

func (s *MediaService) publicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.s3Bucket, s.region, key)
}
