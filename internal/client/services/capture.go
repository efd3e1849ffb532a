// Package services contains the client-side capture pipeline: classify a
// copied string, optionally encrypt it, store it locally, and hand it to the
// transport for delivery.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/classify"
	"github.com/Aphrodine-wq/clipsync/internal/client/config"
	"github.com/Aphrodine-wq/clipsync/internal/client/repositories/clips"
	"github.com/Aphrodine-wq/clipsync/internal/client/transport"
	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/cryptox"
	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/google/uuid"
)

// CaptureOptions control one capture.
type CaptureOptions struct {
	// Encrypt is opt-in. Sensitivity flags from classification are advisory
	// and never force encryption on their own.
	Encrypt bool
	// TeamID shares the clip with a team room; empty means personal.
	TeamID string
}

// CaptureResult reports what happened to a captured clip.
type CaptureResult struct {
	Clip           *model.Clip
	Classification classify.Result
	// Queued is true when the write sits in the outbox awaiting a
	// connection rather than being in flight.
	Queued bool
}

// CaptureService runs the capture pipeline and keeps the local cache in step
// with transport events.
type CaptureService struct {
	cfg       *config.Config
	cipher    *cryptox.Cipher
	clipRepo  clips.Repository
	transport *transport.Transport
	api       *transport.API
	logger    logging.Logger

	subs []transport.Subscription
}

// NewCaptureService wires the pipeline and subscribes to the transport's
// event surface. Call Stop to release the subscriptions.
func NewCaptureService(cfg *config.Config, cipher *cryptox.Cipher, clipRepo clips.Repository,
	tr *transport.Transport, api *transport.API, logger logging.Logger) *CaptureService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &CaptureService{
		cfg:       cfg,
		cipher:    cipher,
		clipRepo:  clipRepo,
		transport: tr,
		api:       api,
		logger:    logger.With("module", "capture"),
	}
	s.subscribe()
	return s
}

func (s *CaptureService) subscribe() {
	bus := s.transport.Bus()
	s.subs = append(s.subs,
		bus.Subscribe(transport.KindWriteAcked, s.onWriteAcked),
		bus.Subscribe(transport.KindClipCreated, s.onClipUpserted),
		bus.Subscribe(transport.KindClipUpdated, s.onClipUpserted),
		bus.Subscribe(transport.KindClipDeleted, s.onClipDeleted),
		bus.Subscribe(transport.KindTeamClipCreated, s.onClipUpserted),
		bus.Subscribe(transport.KindTeamClipUpdated, s.onClipUpserted),
		bus.Subscribe(transport.KindTeamClipDeleted, s.onClipDeleted),
		bus.Subscribe(transport.KindSynced, s.onSynced),
	)
}

// Stop cancels the bus subscriptions.
func (s *CaptureService) Stop() {
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
}

// Capture runs the pipeline for one copied string: classify, optionally
// encrypt, cache locally, send or queue. The local cache write and the
// outbox enqueue both complete before Capture returns, so the clip survives
// a crash from this point on.
func (s *CaptureService) Capture(ctx context.Context, content string, opts CaptureOptions) (*CaptureResult, error) {
	classification := classify.Classify(content)

	clip := &model.Clip{
		LocalID:      uuid.NewString(),
		Content:      content,
		Type:         classification.Type,
		DeviceOrigin: s.cfg.DeviceName,
		TeamID:       opts.TeamID,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if opts.Encrypt {
		env, err := s.cipher.Encrypt(content)
		if err != nil {
			return nil, fmt.Errorf("encrypt clip: %w", err)
		}
		clip.Encrypted = true
		clip.CipherEnvelope = env.String()
		clip.Content = ""
	}

	if err := s.clipRepo.Upsert(ctx, clip); err != nil {
		return nil, err
	}

	queued := false
	if err := s.transport.NotifyClipCreated(ctx, clip); err != nil {
		if !errors.Is(err, common.ErrTransportUnavailable) {
			return nil, err
		}
		queued = true
	}

	return &CaptureResult{Clip: clip, Classification: classification, Queued: queued}, nil
}

// Reveal returns a clip's plaintext, decrypting the envelope when needed.
// Decryption failures are reported to the caller and never crash anything.
func (s *CaptureService) Reveal(ctx context.Context, localID string) (string, error) {
	clip, err := s.clipRepo.GetByLocalID(ctx, localID)
	if err != nil {
		return "", err
	}
	if clip.Encrypted {
		return s.cipher.DecryptString(clip.CipherEnvelope)
	}
	return clip.Content, nil
}

// List returns the local cache, newest first.
func (s *CaptureService) List(ctx context.Context, limit int) ([]*model.Clip, error) {
	return s.clipRepo.List(ctx, limit)
}

// Pin queues a pin/unpin patch for a persisted clip.
func (s *CaptureService) Pin(ctx context.Context, clipID string, pinned bool) error {
	return s.transport.NotifyClipPinned(ctx, clipID, pinned)
}

// Delete queues a delete.
func (s *CaptureService) Delete(ctx context.Context, clipID string) error {
	if err := s.clipRepo.DeleteByServerID(ctx, clipID); err != nil {
		return err
	}
	return s.transport.NotifyClipDeleted(ctx, clipID)
}

// Unlock fetches the content of a password-protected clip. Online only.
func (s *CaptureService) Unlock(ctx context.Context, clipID, password string) (string, error) {
	return s.api.Unlock(ctx, clipID, password)
}

func (s *CaptureService) onWriteAcked(e transport.Event) {
	ctx := context.Background()
	if e.Clip == nil {
		return
	}
	if err := s.clipRepo.Upsert(ctx, e.Clip); err != nil {
		s.logger.Warn(ctx, "cache update after ack failed", "local_id", e.Clip.LocalID, "error", err)
	}
}

func (s *CaptureService) onClipUpserted(e transport.Event) {
	ctx := context.Background()
	if e.Clip == nil {
		return
	}
	if err := s.clipRepo.Upsert(ctx, e.Clip); err != nil {
		s.logger.Warn(ctx, "cache update from broadcast failed", "clip_id", e.Clip.ID, "error", err)
	}
}

func (s *CaptureService) onClipDeleted(e transport.Event) {
	ctx := context.Background()
	if err := s.clipRepo.DeleteByServerID(ctx, e.ClipID); err != nil {
		s.logger.Warn(ctx, "cache delete from broadcast failed", "clip_id", e.ClipID, "error", err)
	}
}

// onSynced runs the REST catch-up fetch. Broadcasts missed while offline are
// reconciled here; the socket stream is best-effort on top of this.
func (s *CaptureService) onSynced(transport.Event) {
	ctx := context.Background()
	clipList, err := s.api.ListClips(ctx, transport.ListOptions{})
	if err != nil {
		s.logger.Warn(ctx, "catch-up fetch failed", "error", err)
		return
	}
	for _, c := range clipList {
		if err := s.clipRepo.Upsert(ctx, c); err != nil {
			s.logger.Warn(ctx, "catch-up cache update failed", "clip_id", c.ID, "error", err)
			return
		}
	}
	s.logger.Info(ctx, "catch-up fetch complete", "clips", len(clipList))
}
