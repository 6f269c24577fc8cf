package audit

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestOpenSQLiteAppliesMigrationsOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	db, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationJournalRecentIndex).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	var indexCount int64
	if err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", "idx_invocation_journal_recent").Scan(&indexCount).Error; err != nil {
		testContext.Fatalf("failed to inspect indexes: %v", err)
	}
	if indexCount != 1 {
		testContext.Fatalf("expected recent index to exist, got %d", indexCount)
	}

	if err := applyMigrations(db, zap.NewNop()); err != nil {
		testContext.Fatalf("expected re-applying migrations to be a no-op: %v", err)
	}
	var recordCount int64
	if err := db.Model(&migrationRecord{}).Count(&recordCount).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if recordCount != 1 {
		testContext.Fatalf("expected a single migration record, got %d", recordCount)
	}
}
