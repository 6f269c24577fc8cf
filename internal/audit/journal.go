package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	OperationInvoke = "invoke"
	OperationHalt   = "halt"

	OutcomeFailed = "failed"
	OutcomeHalted = "halted"

	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

var errMissingDatabase = errors.New("audit: database connection required")

// Entry is one journaled invocation outcome. Secrets and header values are never stored.
type Entry struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	InvocationID string    `gorm:"column:invocation_id;size:36;not null;index" json:"invocation_id"`
	Operation    string    `gorm:"column:operation;size:16;not null" json:"operation"`
	Login        string    `gorm:"column:login;size:320" json:"login"`
	Outcome      string    `gorm:"column:outcome;size:32;not null" json:"outcome"`
	UserID       string    `gorm:"column:user_id;size:64" json:"user_id,omitempty"`
	ErrorKind    string    `gorm:"column:error_kind;size:64" json:"error_kind,omitempty"`
	StatusCode   int       `gorm:"column:status_code" json:"status_code,omitempty"`
	Retryable    bool      `gorm:"column:retryable" json:"retryable"`
	RecordedAt   time.Time `gorm:"column:recorded_at;not null;index" json:"recorded_at"`
}

// TableName exposes the table backing the journal.
func (Entry) TableName() string {
	return "invocation_journal"
}

// Journal appends invocation outcomes to SQLite. Nothing in the create path reads it back.
type Journal struct {
	db *gorm.DB
}

// NewJournal wraps an opened database.
func NewJournal(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Journal{db: db}, nil
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	entry.ID = 0
	return j.db.WithContext(ctx).Create(&entry).Error
}

// Recent returns the latest entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	var entries []Entry
	err := j.db.WithContext(ctx).
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).
		Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
