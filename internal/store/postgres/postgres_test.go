package postgres

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// newMockStore returns a Store backed by an in-process sqlmock driver, the
// same no-live-database test shape used throughout this package's tests.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}
