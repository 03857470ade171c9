package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// Repository defines the interface for audit log operations.
type Repository interface {
	// Append stores a new record and returns it.
	Append(ctx context.Context, entry Entry) (*Log, error)

	// QueryByEntity returns records for one entity, newest first.
	// A limit of 0 means no limit.
	QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Log, error)

	// QueryByUser returns records written by userID, newest first.
	// A limit of 0 means no limit.
	QueryByUser(ctx context.Context, userID string, limit int) ([]*Log, error)
}

func newLog(entry Entry, now time.Time) *Log {
	return &Log{
		ID:         uuid.NewString(),
		UserID:     entry.UserID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Outcome:    entry.Outcome,
		RequestID:  entry.RequestID,
		CreatedAt:  now.UTC(),
	}
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs []*Log
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Append(_ context.Context, entry Entry) (*Log, error) {
	log := newLog(entry, time.Now())

	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()

	logCopy := *log
	return &logCopy, nil
}

func (r *InMemoryRepository) QueryByEntity(_ context.Context, entityType, entityID string, limit int) ([]*Log, error) {
	return r.query(limit, func(l *Log) bool {
		return l.EntityType == entityType && l.EntityID == entityID
	}), nil
}

func (r *InMemoryRepository) QueryByUser(_ context.Context, userID string, limit int) ([]*Log, error) {
	return r.query(limit, func(l *Log) bool { return l.UserID == userID }), nil
}

// query walks the log backwards so results come out newest first.
func (r *InMemoryRepository) query(limit int, match func(*Log) bool) []*Log {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !match(r.logs[i]) {
			continue
		}
		logCopy := *r.logs[i]
		results = append(results, &logCopy)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// GormRepository stores audit records in Postgres.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository backed by db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Append(ctx context.Context, entry Entry) (_ *Log, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "audit_logs", tracing.OpInsert)
	defer func() { end(err) }()

	log := newLog(entry, time.Now())
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

func (r *GormRepository) QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Log, error) {
	return r.query(ctx, limit, "entity_type = ? AND entity_id = ?", entityType, entityID)
}

func (r *GormRepository) QueryByUser(ctx context.Context, userID string, limit int) ([]*Log, error) {
	return r.query(ctx, limit, "user_id = ?", userID)
}

func (r *GormRepository) query(ctx context.Context, limit int, where string, args ...any) (_ []*Log, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "audit_logs", tracing.OpQuery)
	defer func() { end(err) }()

	q := r.db.WithContext(ctx).Where(where, args...).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []*Log
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
