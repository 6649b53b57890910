package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pressly/goose/v3"

	"github.com/pkordes/wine-catalog/backend/internal/database"
	"github.com/pkordes/wine-catalog/backend/migrations"
	"github.com/pkordes/wine-catalog/backend/testutil"
)

// TestMain applies all pending Postgres migrations to the test database once,
// so individual Postgres tests never need to think about schema state.
// SQLite tests migrate their own in-memory database and need nothing here.
func TestMain(m *testing.M) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		os.Exit(m.Run())
	}

	db := testutil.MustOpenSQLDB(os.Getenv("TEST_DATABASE_URL"))
	if err := database.Migrate(context.Background(), goose.DialectPostgres, db, migrations.Postgres()); err != nil {
		log.Fatalf("TestMain: %v", err)
	}
	db.Close()

	os.Exit(m.Run())
}
