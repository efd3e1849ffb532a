package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/Aphrodine-wq/clipsync/internal/server/auth"
	sc "github.com/Aphrodine-wq/clipsync/internal/server/config"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/clips"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/teams"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for testing the presign flow without AWS.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ClipService owns all clip semantics behind the REST surface: ownership
// validation, idempotent persistence, field patches, password protection,
// and object-storage offload for oversized content.
type ClipService struct {
	clips  clips.Repository
	teams  teams.Repository
	config *sc.Config
}

// NewClipService constructs a ClipService over the given repositories.
func NewClipService(clipRepo clips.Repository, teamRepo teams.Repository, config *sc.Config) *ClipService {
	return &ClipService{clips: clipRepo, teams: teamRepo, config: config}
}

// SaveResult is the persist confirmation. Clip always echoes the submitted
// LocalID; UploadURL is set when the content was oversized and must be PUT
// to object storage by the submitting device.
type SaveResult struct {
	Clip      *model.Clip
	UploadURL string
	// Created is false when the LocalID had already been persisted.
	Created bool
}

// Save persists a clip for userID. The write is validated against ownership
// first: a team clip from a non-member is rejected before anything is
// persisted. Resubmitting the same LocalID returns the already-persisted
// clip with no new row and no upload URL.
//
// Content larger than the inline limit is not stored in the row; the caller
// receives a presigned PUT URL and the row keeps only the storage key.
func (s *ClipService) Save(ctx context.Context, userID, deviceID string, clip *model.Clip) (*SaveResult, error) {
	if clip.LocalID == "" {
		return nil, fmt.Errorf("clip is missing a local id")
	}
	if clip.OwnerID != "" && clip.OwnerID != userID {
		return nil, common.ErrOwnershipRejected
	}
	clip.OwnerID = userID
	clip.DeviceOrigin = deviceID

	if clip.TeamID != "" {
		member, err := s.teams.IsMember(ctx, clip.TeamID, userID)
		if err != nil {
			return nil, fmt.Errorf("membership check: %w", err)
		}
		if !member {
			return nil, common.ErrOwnershipRejected
		}
	}

	var storageKey, uploadURL string
	if s.config.InlineContentLimit > 0 && len(clip.Content) > s.config.InlineContentLimit {
		var err error
		storageKey, uploadURL, err = s.presignedPutURL(ctx)
		if err != nil {
			return nil, fmt.Errorf("presign upload: %w", err)
		}
		clip.Content = ""
	}

	saved, created, err := s.clips.Save(ctx, clip, storageKey)
	if err != nil {
		return nil, err
	}

	// A duplicate submission returns the existing row; the upload URL only
	// accompanies the persist that actually created the row.
	if !created {
		uploadURL = ""
	}

	s.redact(ctx, saved)
	return &SaveResult{Clip: saved, UploadURL: uploadURL, Created: created}, nil
}

// Get returns a clip visible to userID.
func (s *ClipService) Get(ctx context.Context, userID, clipID string) (*model.Clip, error) {
	clip, err := s.clips.GetByID(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, clip); err != nil {
		return nil, err
	}
	s.redact(ctx, clip)
	return clip, nil
}

// List returns clips visible to userID, newest first. Password-protected
// content is redacted; Unlock is the only way to read it.
func (s *ClipService) List(ctx context.Context, userID string, opts clips.ListOptions) ([]*model.Clip, error) {
	result, err := s.clips.List(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	for _, clip := range result {
		s.redact(ctx, clip)
	}
	return result, nil
}

// SetPinned patches the pinned flag and returns the updated clip.
func (s *ClipService) SetPinned(ctx context.Context, userID, clipID string, pinned bool) (*model.Clip, error) {
	if err := s.authorizeByID(ctx, userID, clipID); err != nil {
		return nil, err
	}
	if err := s.clips.SetPinned(ctx, clipID, pinned); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, clipID)
}

// SetPassword protects a clip. The protection flag and the hash land in one
// repository statement, so no reader ever sees a protected clip without a
// hash.
func (s *ClipService) SetPassword(ctx context.Context, userID, clipID, password string) (*model.Clip, error) {
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}
	if err := s.authorizeByID(ctx, userID, clipID); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}
	if err := s.clips.SetPassword(ctx, clipID, hash); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, clipID)
}

// Unlock returns the protected content when password matches, otherwise
// common.ErrUnauthorized. Unprotected clips unlock unconditionally.
func (s *ClipService) Unlock(ctx context.Context, userID, clipID, password string) (string, error) {
	clip, err := s.clips.GetByID(ctx, clipID)
	if err != nil {
		return "", err
	}
	if err := s.authorize(ctx, userID, clip); err != nil {
		return "", err
	}
	if !clip.PasswordProtected {
		return clip.Content, nil
	}
	hash, err := s.clips.GetPasswordHash(ctx, clipID)
	if err != nil {
		return "", err
	}
	if !auth.VerifyPassword(hash, password) {
		return "", common.ErrUnauthorized
	}
	return clip.Content, nil
}

// RemovePassword lifts protection after verifying the current password.
func (s *ClipService) RemovePassword(ctx context.Context, userID, clipID, password string) (*model.Clip, error) {
	if err := s.authorizeByID(ctx, userID, clipID); err != nil {
		return nil, err
	}
	hash, err := s.clips.GetPasswordHash(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if hash != "" && !auth.VerifyPassword(hash, password) {
		return nil, common.ErrUnauthorized
	}
	if err := s.clips.RemovePassword(ctx, clipID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, clipID)
}

// Delete removes a clip and returns the deleted row so the caller can scope
// the fan-out.
func (s *ClipService) Delete(ctx context.Context, userID, clipID string) (*model.Clip, error) {
	clip, err := s.clips.GetByID(ctx, clipID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, clip); err != nil {
		return nil, err
	}
	if err := s.clips.Delete(ctx, clipID); err != nil {
		return nil, err
	}
	return clip, nil
}

// ContentURL returns a presigned GET URL for a clip whose content was
// offloaded to object storage.
func (s *ClipService) ContentURL(ctx context.Context, userID, clipID string) (string, error) {
	if err := s.authorizeByID(ctx, userID, clipID); err != nil {
		return "", err
	}
	key, err := s.clips.GetStorageKey(ctx, clipID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", common.ErrNotFound
	}
	return s.presignedGetURL(ctx, key)
}

// --- helpers below ---

// authorize checks that userID may act on clip: the owner always may, team
// clips additionally admit team members.
func (s *ClipService) authorize(ctx context.Context, userID string, clip *model.Clip) error {
	if clip.OwnerID == userID {
		return nil
	}
	if clip.TeamID != "" {
		member, err := s.teams.IsMember(ctx, clip.TeamID, userID)
		if err != nil {
			return fmt.Errorf("membership check: %w", err)
		}
		if member {
			return nil
		}
	}
	return common.ErrOwnershipRejected
}

func (s *ClipService) authorizeByID(ctx context.Context, userID, clipID string) error {
	clip, err := s.clips.GetByID(ctx, clipID)
	if err != nil {
		return err
	}
	return s.authorize(ctx, userID, clip)
}

// redact hides protected content and points offloaded content at the
// content-url endpoint. The storage key lookup only happens for clips with
// empty content, which is the offloaded case.
func (s *ClipService) redact(ctx context.Context, clip *model.Clip) {
	if clip.PasswordProtected {
		clip.Content = ""
		return
	}
	if clip.Content == "" {
		if key, err := s.clips.GetStorageKey(ctx, clip.ID); err == nil && key != "" {
			clip.ContentURL = "/clips/" + clip.ID + "/content-url"
		}
	}
}

func randomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("clips/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ClipService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *ClipService) presignedPutURL(ctx context.Context) (string, string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

func (s *ClipService) presignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
