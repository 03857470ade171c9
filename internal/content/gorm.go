package content

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// Row is the content_blocks table layout.
type Row struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	OwnerType string    `gorm:"not null;index:idx_content_blocks_owner"`
	OwnerID   string    `gorm:"type:uuid;not null;index:idx_content_blocks_owner"`
	BlockType string    `gorm:"not null"`
	Content   string    `gorm:"type:jsonb;not null"`
	Position  int       `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (Row) TableName() string { return "content_blocks" }

func rowFromBlock(b *Block) (*Row, error) {
	raw, err := json.Marshal(b.Content)
	if err != nil {
		return nil, err
	}
	return &Row{
		ID:        b.ID,
		OwnerType: string(b.Owner.Type),
		OwnerID:   b.Owner.ID,
		BlockType: string(b.Type()),
		Content:   string(raw),
		Position:  b.Position,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}, nil
}

func (row *Row) block() (*Block, error) {
	c, err := DecodeContent(BlockType(row.BlockType), json.RawMessage(row.Content))
	if err != nil {
		return nil, err
	}
	return &Block{
		ID:        row.ID,
		Owner:     Owner{Type: OwnerType(row.OwnerType), ID: row.OwnerID},
		Content:   c,
		Position:  row.Position,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// GormRepository stores blocks in Postgres. The table carries a deferred
// unique constraint on (owner_type, owner_id, position), so multi-row
// position rewrites are checked only at commit.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository backed by conn.
func NewGormRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{db: conn}
}

func ownerScope(owner Owner) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("owner_type = ? AND owner_id = ?", string(owner.Type), owner.ID)
	}
}

func (r *GormRepository) ListByOwner(ctx context.Context, owner Owner) (_ []*Block, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpQuery)
	defer func() { end(err) }()

	var rows []Row
	if err := r.db.WithContext(ctx).Scopes(ownerScope(owner)).Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*Block, 0, len(rows))
	for i := range rows {
		b, err := rows[i].block()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *GormRepository) GetByID(ctx context.Context, id string) (*Block, error) {
	var row Row
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.block()
}

func (r *GormRepository) Append(ctx context.Context, b *Block) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpInsert)
	defer func() { end(err) }()

	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Row{}).Scopes(ownerScope(b.Owner)).Count(&count).Error; err != nil {
			return err
		}
		b.Position = int(count)

		row, err := rowFromBlock(b)
		if err != nil {
			return err
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		b.CreatedAt, b.UpdatedAt = row.CreatedAt, row.UpdatedAt
		return nil
	})
}

func (r *GormRepository) UpdateContent(ctx context.Context, id string, c Content) (_ *Block, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpUpdate)
	defer func() { end(err) }()

	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	var out *Block
	err = db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var row Row
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBlockNotFound
			}
			return err
		}
		if BlockType(row.BlockType) != c.BlockType() {
			return ErrBlockTypeMismatch
		}
		row.Content = string(raw)
		row.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&Row{}).Where("id = ?", id).
			Updates(map[string]any{"content": row.Content, "updated_at": row.UpdatedAt}).Error; err != nil {
			return err
		}
		out, err = row.block()
		return err
	})
	return out, err
}

func (r *GormRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpDelete)
	defer func() { end(err) }()

	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var row Row
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBlockNotFound
			}
			return err
		}
		if err := tx.Delete(&Row{}, "id = ?", id).Error; err != nil {
			return err
		}
		owner := Owner{Type: OwnerType(row.OwnerType), ID: row.OwnerID}
		return tx.Model(&Row{}).Scopes(ownerScope(owner)).
			Where("position > ?", row.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
	})
}

// Reorder rewrites every position of the owner with one UPDATE ... CASE
// statement inside a transaction.
func (r *GormRepository) Reorder(ctx context.Context, owner Owner, ids []string) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "content_blocks", tracing.OpUpdate)
	defer func() { end(err) }()

	return db.WithTx(ctx, r.db, func(tx *gorm.DB) error {
		var current []string
		if err := tx.Model(&Row{}).Scopes(ownerScope(owner)).Order("position").Pluck("id", &current).Error; err != nil {
			return err
		}
		if err := CheckOrder(current, ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		stmt, args := reorderStatement(owner, ids, time.Now().UTC())
		res := tx.Exec(stmt, args...)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return ErrBlockSetMismatch
		}
		return nil
	})
}

// reorderStatement builds
//
//	UPDATE content_blocks SET position = CASE id WHEN ? THEN 0 ... END, updated_at = ?
//	WHERE owner_type = ? AND owner_id = ? AND id IN (...)
//
// Positions are written as literals so the CASE result is typed integer.
func reorderStatement(owner Owner, ids []string, now time.Time) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, 2*len(ids)+3)

	sb.WriteString("UPDATE content_blocks SET position = CASE id")
	for pos, id := range ids {
		sb.WriteString(" WHEN ? THEN ")
		sb.WriteString(strconv.Itoa(pos))
		args = append(args, id)
	}
	sb.WriteString(" END, updated_at = ? WHERE owner_type = ? AND owner_id = ? AND id IN (")
	args = append(args, now, string(owner.Type), owner.ID)
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, id)
	}
	sb.WriteString(")")
	return sb.String(), args
}
