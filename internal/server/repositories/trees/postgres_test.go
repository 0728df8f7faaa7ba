package trees

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/arbolado/treeregistry/internal/common"
	"github.com/arbolado/treeregistry/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleTree() *models.TreeRecord {
	return &models.TreeRecord{
		ID:           "t1",
		SpeciesName:  "Jacaranda mimosifolia",
		EstimatedAge: 12,
		HealthStatus: models.HealthGood,
		Notes:        "next to the school",
		Address:      "Av. 9 de Julio 120",
		Location:     models.GeoPoint{Latitude: -30.75, Longitude: -57.98},
		ImageRef:     "private/42-photo.jpg",
		CreatedBy:    "u1",
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Visibility:   models.VisibilityPending,
	}
}

var treeColumns = []string{
	"id", "species_name", "estimated_age", "health_status", "notes", "address",
	"latitude", "longitude", "image_ref", "created_by", "created_at", "visibility",
}

func treeRow(tr *models.TreeRecord) *sqlmock.Rows {
	return sqlmock.NewRows(treeColumns).AddRow(
		tr.ID, tr.SpeciesName, tr.EstimatedAge, string(tr.HealthStatus), tr.Notes, tr.Address,
		tr.Location.Latitude, tr.Location.Longitude, tr.ImageRef, tr.CreatedBy,
		tr.CreatedAt, string(tr.Visibility),
	)
}

func TestCreate_ForcesPendingVisibility(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tr := sampleTree()
	tr.Visibility = models.VisibilityPublic // must be ignored by the insert

	q := regexp.MustCompile(`INSERT INTO trees .*VALUES \(\$1, .*'pending'\);`)
	mock.ExpectExec(q.String()).
		WithArgs(
			tr.ID, tr.SpeciesName, tr.EstimatedAge, string(tr.HealthStatus), tr.Notes, tr.Address,
			tr.Location.Latitude, tr.Location.Longitude, tr.ImageRef, tr.CreatedBy, tr.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO trees`).WillReturnError(errors.New("db is down"))

	err := repo.Create(context.Background(), sampleTree())
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_ReturnsRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	want := sampleTree()
	mock.ExpectQuery(`SELECT .* FROM trees WHERE id=\$1`).
		WithArgs("t1").
		WillReturnRows(treeRow(want))

	got, err := repo.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != want.ID || got.ImageRef != want.ImageRef || got.Visibility != want.Visibility {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Location != want.Location {
		t.Fatalf("unexpected location: %+v", got.Location)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM trees WHERE id=\$1`).
		WithArgs("does-not-exist").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "does-not-exist")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListByVisibility(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	first := sampleTree()
	second := sampleTree()
	second.ID = "t2"

	rows := treeRow(first).AddRow(
		second.ID, second.SpeciesName, second.EstimatedAge, string(second.HealthStatus),
		second.Notes, second.Address, second.Location.Latitude, second.Location.Longitude,
		second.ImageRef, second.CreatedBy, second.CreatedAt, string(second.Visibility),
	)

	mock.ExpectQuery(`SELECT .* FROM trees WHERE visibility=\$1 ORDER BY created_at`).
		WithArgs("pending").
		WillReturnRows(rows)

	got, err := repo.ListByVisibility(context.Background(), models.VisibilityPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestPublish_TransitionWins(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE trees SET visibility='public', image_ref=\$2\s+WHERE id=\$1 AND visibility='pending'`).
		WithArgs("t1", "public/42-photo.jpg").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Publish(context.Background(), "t1", "public/42-photo.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected transition to be performed")
	}
}

func TestPublish_AlreadyPublicIsNoop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE trees SET visibility='public'`).
		WithArgs("t1", "public/42-photo.jpg").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Publish(context.Background(), "t1", "public/42-photo.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no-op for already public record")
	}
}

func TestPublish_MissingRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE trees SET visibility='public'`).
		WithArgs("nope", "public/x.jpg").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.Publish(context.Background(), "nope", "public/x.jpg")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
