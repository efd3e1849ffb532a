package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/Aphrodine-wq/clipsync/internal/dbx"
	"github.com/Aphrodine-wq/clipsync/internal/server/auth"
	"github.com/Aphrodine-wq/clipsync/internal/server/config"
	"github.com/Aphrodine-wq/clipsync/internal/server/models"
	clipsrepo "github.com/Aphrodine-wq/clipsync/internal/server/repositories/clips"
	refreshtokensrepo "github.com/Aphrodine-wq/clipsync/internal/server/repositories/refreshtokens"
	"github.com/Aphrodine-wq/clipsync/internal/server/repositories/repomanager"
	teamsrepo "github.com/Aphrodine-wq/clipsync/internal/server/repositories/teams"
	usersrepo "github.com/Aphrodine-wq/clipsync/internal/server/repositories/users"
	"github.com/DATA-DOG/go-sqlmock"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newUserService(t *testing.T, db *sql.DB, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
	return NewUserService(db, rm, cfg)
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := *f.createOut
	out.PasswordHash = u.PasswordHash
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr    error
	createErr error
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	return f.createErr
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	return f.delErr
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Teams(db dbx.DBTX) teamsrepo.Repository                 { return nil }
func (m *fakeRepoManager) Clips(db dbx.DBTX) clipsrepo.Repository                 { return nil }

// --- tests ---

func TestRegister_SuccessAndError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rmOK := &fakeRepoManager{
		u: &fakeUsersRepo{createOut: &models.User{ID: "42", UserName: "alice"}},
		r: &fakeRefreshRepo{},
	}
	sOK := newUserService(t, db, rmOK)
	u, err := sOK.Register(context.Background(), "alice", "pass1234")
	if err != nil || u.ID != "42" {
		t.Fatalf("Register ok: got (%v, %v)", u, err)
	}
	if !auth.VerifyPassword(u.PasswordHash, "pass1234") {
		t.Fatalf("stored hash does not verify the password")
	}

	rmErr := &fakeRepoManager{
		u: &fakeUsersRepo{createErr: errBoom{}},
		r: &fakeRefreshRepo{},
	}
	sErr := newUserService(t, db, rmErr)
	_, err = sErr.Register(context.Background(), "bob", "pass1234")
	if err == nil || !regexp.MustCompile(`error creating user: .*boom`).MatchString(err.Error()) {
		t.Fatalf("Register expected wrapped error, got %v", err)
	}
}

func TestLogin_Flows(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := auth.HashPassword("right-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1", UserName: "alice", PasswordHash: hash}},
		r: &fakeRefreshRepo{},
	}
	s := newUserService(t, db, rm)

	pair, err := s.Login(context.Background(), "alice", "right-password")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}

	// the minted access token round-trips through verification
	userID, err := s.VerifyAccessToken(pair.AccessToken)
	if err != nil || userID != "u1" {
		t.Fatalf("VerifyAccessToken: got (%q, %v)", userID, err)
	}

	if _, err := s.Login(context.Background(), "alice", "wrong"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("wrong password: want ErrUnauthorized, got %v", err)
	}

	// unknown users are indistinguishable from wrong passwords
	rmNF := &fakeRepoManager{
		u: &fakeUsersRepo{getErr: common.ErrNotFound},
		r: &fakeRefreshRepo{},
	}
	sNF := newUserService(t, db, rmNF)
	if _, err := sNF.Login(context.Background(), "ghost", "x"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("unknown user: want ErrUnauthorized, got %v", err)
	}
}

func TestRefreshToken_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
		},
	}
	s := newUserService(t, db, rm)

	pair, err := s.RefreshToken(context.Background(), "refresh-xyz")
	if err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(-1 * time.Minute)},
		},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want ErrRefreshTokenExpired, got %v", err)
	}
}

func TestRefreshToken_Unknown(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{r: &fakeRefreshRepo{findErr: common.ErrNotFound}}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestRefreshToken_DeleteErrRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut: &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
			delErr:  errBoom{},
		},
	}
	s := newUserService(t, db, rm)

	_, err := s.RefreshToken(context.Background(), "r")
	if err == nil || !regexp.MustCompile(`error deleting refresh token: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRefreshToken_CreateErrRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{
		r: &fakeRefreshRepo{
			findOut:   &models.RefreshToken{UserID: "u1", Expires: time.Now().Add(10 * time.Minute)},
			createErr: errBoom{},
		},
	}
	s := newUserService(t, db, rm)

	if _, err := s.RefreshToken(context.Background(), "r"); !errors.Is(err, common.ErrInternal) {
		t.Fatalf("want ErrInternal, got %v", err)
	}
}

func TestUserName(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{getOut: &models.User{ID: "u1", UserName: "alice"}},
		r: &fakeRefreshRepo{},
	}
	s := newUserService(t, db, rm)

	name, err := s.UserName(context.Background(), "u1")
	if err != nil || name != "alice" {
		t.Fatalf("UserName: got (%q, %v)", name, err)
	}
}
