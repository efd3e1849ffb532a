package teams

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/Aphrodine-wq/clipsync/internal/server/models"
	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+teams\s*\(name\)\s*VALUES\s*\(\$1\)\s*RETURNING\s+id\s*$`

	rows := sqlmock.NewRows([]string{"id"}).AddRow("t-1")
	mock.ExpectQuery(q).
		WithArgs("platform").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), &models.Team{Name: "platform"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "t-1" || got.Name != "platform" {
		t.Fatalf("unexpected team: %+v", got)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+teams\b`).
		WithArgs("platform").
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Team{Name: "platform"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestAddMember_IdempotentInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+team_members\s*\(team_id,\s*user_id\)\s*VALUES\s*\(\$1,\s*\$2\)\s*ON\s+CONFLICT\s*\(team_id,\s*user_id\)\s*DO\s+NOTHING\s*$`

	mock.ExpectExec(q).
		WithArgs("t-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// repeat insert hits the conflict clause and affects nothing
	mock.ExpectExec(q).
		WithArgs("t-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.AddMember(context.Background(), "t-1", "u-1"); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := repo.AddMember(context.Background(), "t-1", "u-1"); err != nil {
		t.Fatalf("repeat AddMember error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIsMember(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+EXISTS\s*\(\s*SELECT\s+1\s+FROM\s+team_members\s+WHERE\s+team_id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*\)\s*$`

	mock.ExpectQuery(q).
		WithArgs("t-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(q).
		WithArgs("t-1", "stranger").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.IsMember(context.Background(), "t-1", "u-1")
	if err != nil || !ok {
		t.Fatalf("expected member, got ok=%v err=%v", ok, err)
	}
	ok, err = repo.IsMember(context.Background(), "t-1", "stranger")
	if err != nil || ok {
		t.Fatalf("expected non-member, got ok=%v err=%v", ok, err)
	}
}

func TestIsMember_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*SELECT\s+EXISTS\b`).
		WithArgs("t-1", "u-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.IsMember(context.Background(), "t-1", "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMemberTeams_ReturnsAllRooms(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+team_id\s+FROM\s+team_members\s+WHERE\s+user_id\s*=\s*\$1\s*$`

	rows := sqlmock.NewRows([]string{"team_id"}).AddRow("t-1").AddRow("t-2")
	mock.ExpectQuery(q).
		WithArgs("u-1").
		WillReturnRows(rows)

	got, err := repo.MemberTeams(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("MemberTeams error: %v", err)
	}
	if len(got) != 2 || got[0] != "t-1" || got[1] != "t-2" {
		t.Fatalf("unexpected teams: %v", got)
	}
}

func TestMemberTeams_EmptyForUnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+team_id\s+FROM\s+team_members\s+WHERE\s+user_id\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"team_id"}))

	got, err := repo.MemberTeams(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("MemberTeams error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no teams, got %v", got)
	}
}
