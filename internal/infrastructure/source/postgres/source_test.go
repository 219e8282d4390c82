package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSourceWithMock(t *testing.T) (*Source, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return New(db, nil), mock, func() { _ = db.Close() }
}

func TestLoadReturnsDocumentsInOrder(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "name", "full_text"}).
		AddRow("cc", "Código Civil", "Artigo 1.º\nFontes imediatas").
		AddRow("crp", nil, "Artigo 13.º\nPrincípio da igualdade")
	mock.ExpectQuery("SELECT id, name, full_text").WillReturnRows(rows)

	docs, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Name != "Código Civil" || docs[1].Name != "" || docs[1].DisplayName() != "crp" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadWrapsQueryError(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	queryErr := errors.New("connection reset")
	mock.ExpectQuery("SELECT id, name, full_text").WillReturnError(queryErr)

	if _, err := source.Load(context.Background()); !errors.Is(err, queryErr) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestEnsureSchemaCreatesTableUnderLock(t *testing.T) {
	source, mock, done := newSourceWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101901)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS law_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := source.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
