package migrations_test

import (
	"context"
	"testing"

	"github.com/njhostel/mysterynight/internal/database"
	"github.com/njhostel/mysterynight/internal/migrations"
)

func TestMigrations(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db, database.DriverLibSQL); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Verify all tables exist by querying sqlite_master.
	want := []string{"users", "user_id_cursor"}

	for _, table := range want {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}

	var last int
	if err := db.QueryRow("SELECT last_id FROM user_id_cursor WHERE singleton = 1").Scan(&last); err != nil {
		t.Fatalf("reading cursor: %v", err)
	}
	if last != -1 {
		t.Errorf("cursor seeded with %d, want -1", last)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db, database.DriverLibSQL); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(db, database.DriverLibSQL); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}
