package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/client/config"
	"github.com/Aphrodine-wq/clipsync/internal/client/outbox"
	"github.com/Aphrodine-wq/clipsync/internal/client/repositories/clips"
	"github.com/Aphrodine-wq/clipsync/internal/client/transport"
	"github.com/Aphrodine-wq/clipsync/internal/cryptox"
	"github.com/Aphrodine-wq/clipsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE clips (
  id TEXT NOT NULL DEFAULT '',
  local_id TEXT PRIMARY KEY,
  content TEXT NOT NULL,
  type TEXT NOT NULL,
  owner_id TEXT NOT NULL DEFAULT '',
  device_origin TEXT NOT NULL DEFAULT '',
  team_id TEXT NOT NULL DEFAULT '',
  pinned INTEGER NOT NULL DEFAULT 0,
  encrypted INTEGER NOT NULL DEFAULT 0,
  cipher_envelope TEXT NOT NULL DEFAULT '',
  content_url TEXT NOT NULL DEFAULT '',
  password_protected INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE outbox (
  local_id TEXT PRIMARY KEY,
  op TEXT NOT NULL,
  payload BLOB NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMP NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

// newTestCapture wires a capture service against an offline transport: the
// dialer is never exercised because no token is installed, so every write
// lands in the outbox.
func newTestCapture(t *testing.T, serverURL string) (*CaptureService, clips.Repository, *transport.Bus) {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DeviceName = "test-laptop"

	db := setupDB(t)
	clipRepo := clips.NewSQLiteRepository(db)
	ob := outbox.New(outbox.NewSQLiteRepository(db), nil, nil)

	api := transport.NewAPI(serverURL, "dev-1", nil)
	bus := transport.NewBus(nil)
	tr := transport.New(cfg, api, ob, bus, transport.Options{})
	t.Cleanup(func() { _ = tr.Close() })

	key, err := cryptox.ResolveMasterKey("", false)
	require.NoError(t, err)
	cipher, err := cryptox.NewCipher(key)
	require.NoError(t, err)

	svc := NewCaptureService(cfg, cipher, clipRepo, tr, api, nil)
	t.Cleanup(svc.Stop)

	return svc, clipRepo, bus
}

func TestCapture_ClassifiesStoresAndQueues(t *testing.T) {
	svc, repo, _ := newTestCapture(t, "http://127.0.0.1:0")
	ctx := context.Background()

	res, err := svc.Capture(ctx, "https://example.com/deploy", CaptureOptions{})
	require.NoError(t, err)

	assert.True(t, res.Queued, "offline capture must be queued, not dropped")
	assert.Equal(t, model.ClipTypeURL, res.Classification.Type)
	require.NotEmpty(t, res.Clip.LocalID)
	assert.Equal(t, "test-laptop", res.Clip.DeviceOrigin)

	stored, err := repo.GetByLocalID(ctx, res.Clip.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/deploy", stored.Content)
	assert.Equal(t, model.ClipTypeURL, stored.Type)
}

func TestCapture_EncryptReplacesContentWithEnvelope(t *testing.T) {
	svc, repo, _ := newTestCapture(t, "http://127.0.0.1:0")
	ctx := context.Background()

	res, err := svc.Capture(ctx, "hunter2-super-secret", CaptureOptions{Encrypt: true})
	require.NoError(t, err)

	stored, err := repo.GetByLocalID(ctx, res.Clip.LocalID)
	require.NoError(t, err)
	assert.True(t, stored.Encrypted)
	assert.Empty(t, stored.Content, "plaintext must not be cached")
	assert.NotEmpty(t, stored.CipherEnvelope)
	assert.NotContains(t, stored.CipherEnvelope, "hunter2")
}

func TestReveal_DecryptsEncryptedClip(t *testing.T) {
	svc, _, _ := newTestCapture(t, "http://127.0.0.1:0")
	ctx := context.Background()

	res, err := svc.Capture(ctx, "rotate me", CaptureOptions{Encrypt: true})
	require.NoError(t, err)

	plain, err := svc.Reveal(ctx, res.Clip.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "rotate me", plain)
}

func TestReveal_PlaintextClipPassesThrough(t *testing.T) {
	svc, _, _ := newTestCapture(t, "http://127.0.0.1:0")
	ctx := context.Background()

	res, err := svc.Capture(ctx, "plain note", CaptureOptions{})
	require.NoError(t, err)

	plain, err := svc.Reveal(ctx, res.Clip.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "plain note", plain)
}

func TestBroadcasts_KeepLocalCacheInStep(t *testing.T) {
	_, repo, bus := newTestCapture(t, "http://127.0.0.1:0")
	ctx := context.Background()

	now := time.Now().UTC()
	remote := &model.Clip{
		ID:           "srv-9",
		LocalID:      "other-device-local",
		Content:      "from the phone",
		Type:         model.ClipTypeText,
		DeviceOrigin: "phone",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	bus.Publish(transport.Event{Kind: transport.KindClipCreated, Clip: remote})

	require.Eventually(t, func() bool {
		c, err := repo.GetByLocalID(ctx, "other-device-local")
		return err == nil && c.Content == "from the phone"
	}, 2*time.Second, 10*time.Millisecond)

	bus.Publish(transport.Event{Kind: transport.KindClipDeleted, ClipID: "srv-9"})

	require.Eventually(t, func() bool {
		_, err := repo.GetByLocalID(ctx, "other-device-local")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSynced_RunsCatchUpFetch(t *testing.T) {
	now := time.Now().UTC()
	fetched := []*model.Clip{
		{ID: "srv-1", LocalID: "l1", Content: "one", Type: model.ClipTypeText, CreatedAt: now, UpdatedAt: now},
		{ID: "srv-2", LocalID: "l2", Content: "two", Type: model.ClipTypeText, CreatedAt: now, UpdatedAt: now},
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clips" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"clips": fetched})
	}))
	defer ts.Close()

	_, repo, bus := newTestCapture(t, ts.URL)
	ctx := context.Background()

	bus.Publish(transport.Event{Kind: transport.KindSynced})

	require.Eventually(t, func() bool {
		list, err := repo.List(ctx, 10)
		return err == nil && len(list) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
