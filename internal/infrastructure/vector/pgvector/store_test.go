package pgvector

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	store, err := New(db, "chunks", 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, mock, func() { _ = db.Close() }
}

func TestNewRejectsUnsafeTableName(t *testing.T) {
	if _, err := New(nil, "chunks; DROP TABLE x", 3); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddUpsertsInTransaction(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("abc_1_0", "abc", "gdpr.pdf", 1, "GDPR", "first", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("abc_1_1", "abc", "gdpr.pdf", 1, "GDPR", "second", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	meta := domain.ChunkMetadata{DocID: "abc", Source: "gdpr.pdf", Page: 1, Category: domain.CategoryGDPR}
	err := store.Add(context.Background(),
		[]string{"abc_1_0", "abc_1_1"},
		[]string{"first", "second"},
		[]domain.ChunkMetadata{meta, meta},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryBuildsFilterAndReturnsDistances(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "content", "doc_id", "source", "page", "category", "distance"}).
		AddRow("abc_2_0", "erasure", "abc", "gdpr.pdf", 2, "GDPR", 0.2).
		AddRow("abc_1_0", "consent", "abc", "gdpr.pdf", 1, "GDPR", 0.45)
	mock.ExpectQuery(`WHERE category = \$2 AND page = \$3`).
		WithArgs(sqlmock.AnyArg(), "GDPR", 2, 3).
		WillReturnRows(rows)

	res, err := store.Query(context.Background(), []float32{1, 0, 0}, 3, domain.SearchFilter{Category: domain.CategoryGDPR, Page: 2})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.IDs[0]) != 2 || res.IDs[0][0] != "abc_2_0" || res.Distances[0][1] != 0.45 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Metadatas[0][0].Page != 2 || res.Metadatas[0][0].Category != domain.CategoryGDPR {
		t.Fatalf("unexpected metadata: %+v", res.Metadatas[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteByDocID(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM chunks WHERE doc_id = \\$1").
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 4))

	if err := store.DeleteByDocID(context.Background(), "abc"); err != nil {
		t.Fatalf("DeleteByDocID() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
