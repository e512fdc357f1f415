// Package sql persists conversations in a relational database through GORM.
//
// Each conversation is one row: indexed columns for status and update time, and the
// full record as a JSON document. Open uses the pure-Go SQLite driver; any other GORM
// dialect can be passed to NewFromDB.
package sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is the table row of a conversation.
type Record struct {
	SessionID string `gorm:"primaryKey;size:128"`
	Status    string `gorm:"size:16;index"`
	CreatedMs int64
	UpdatedMs int64 `gorm:"index"`
	Data      []byte
}

// TableName pins the table name regardless of naming strategy.
func (Record) TableName() string { return "conversations" }

// Store implements ports.ConversationStore on top of GORM.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite database at dsn and migrates the schema.
// ":memory:" gives a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer, and every connection to ":memory:" is a new database.
	sqlDB.SetMaxOpenConns(1)
	return NewFromDB(db)
}

// NewFromDB wraps an existing GORM handle and migrates the schema.
func NewFromDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func toRecord(conv *domain.Conversation) (*Record, error) {
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return &Record{
		SessionID: conv.SessionID,
		Status:    string(conv.Status),
		CreatedMs: conv.CreatedAt.UnixMilli(),
		UpdatedMs: conv.UpdatedAt.UnixMilli(),
		Data:      data,
	}, nil
}

func (r *Record) conversation() (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := json.Unmarshal(r.Data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", r.SessionID, err)
	}
	return &conv, nil
}

// Create inserts a new conversation, failing if the session id is taken.
func (s *Store) Create(ctx context.Context, conv *domain.Conversation) error {
	rec, err := toRecord(conv)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Record{}).Where("session_id = ?", rec.SessionID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrSessionExists
		}
		return tx.Create(rec).Error
	})
}

// Put upserts the conversation.
func (s *Store) Put(ctx context.Context, conv *domain.Conversation) error {
	rec, err := toRecord(conv)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Get loads one conversation.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return rec.conversation()
}

// Delete removes the row. Missing rows are not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&Record{}).Error
}

// List returns conversations most recently updated first.
func (s *Store) List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error) {
	q := s.db.WithContext(ctx).Order("updated_ms DESC").Order("session_id ASC")
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []Record
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	out := make([]*domain.Conversation, 0, len(recs))
	for i := range recs {
		conv, err := recs[i].conversation()
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

// Count returns the number of conversations with the given status ("" for all).
func (s *Store) Count(ctx context.Context, status domain.Status) (int, error) {
	q := s.db.WithContext(ctx).Model(&Record{})
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return int(n), nil
}

// Prune deletes conversations last updated before the cutoff.
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("updated_ms < ?", before.UnixMilli()).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
