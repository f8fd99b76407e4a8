package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsDirValidates(t *testing.T) {
	t.Parallel()
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestMigrationsCoverCoreTables(t *testing.T) {
	t.Parallel()
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	var all strings.Builder
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		all.Write(b)
	}

	sql := all.String()
	for _, table := range []string{"events", "ticket_tiers", "transactions", "stock_delta_events"} {
		if !strings.Contains(sql, "CREATE TABLE "+table) {
			t.Errorf("no migration creates table %s", table)
		}
	}
	if !strings.Contains(sql, "ux_transactions_client_ref") {
		t.Error("transactions migration missing unique client_ref index")
	}
	if !strings.Contains(sql, "ck_ticket_tiers_available_range") {
		t.Error("ticket_tiers migration missing stock range check")
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "not_a_migration.sql")
	if err := os.WriteFile(path, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "20260101000000_backwards.sql")
	if err := os.WriteFile(path, []byte("-- +goose Down\n-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected reversed sections to fail validation")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Tier Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_tier_index.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}
