package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bloblets/arena-backend/pkg/migrate"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_ledger_entries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"parent_id BIGINT NOT NULL DEFAULT 0",
		"CHECK (balance_after >= 0)",
		"idx_ledger_address_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_address_parent ON ledger_entries (address, parent_id)",
		"DROP TABLE IF EXISTS ledger_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestConfirmationUniqueIndexes(t *testing.T) {
	tests := []struct {
		glob  string
		index string
	}{
		{glob: "*_create_treasury_swaps.sql", index: "uq_swaps_tx_signature"},
		{glob: "*_create_orders.sql", index: "uq_orders_tx_hash"},
	}

	for _, tc := range tests {
		matches, err := filepath.Glob(filepath.Join("migrations", tc.glob))
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("no migration matching %s", tc.glob)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		if !strings.Contains(string(data), "CREATE UNIQUE INDEX IF NOT EXISTS "+tc.index) {
			t.Errorf("migration %s missing unique index %s", matches[0], tc.index)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir should validate: %v", err)
	}
}
