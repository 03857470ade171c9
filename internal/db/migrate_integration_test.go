//go:build integration

package db_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db/dbtest"
)

func TestMigrations_UpDown(t *testing.T) {
	ctx := context.Background()
	sqlDB := dbtest.OpenPQ(t, dbtest.StartPostgres(t))

	if err := db.Migrate(ctx, sqlDB, "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	var categories int
	if err := sqlDB.QueryRow(`SELECT count(*) FROM categories`).Scan(&categories); err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if categories == 0 {
		t.Error("expected seeded categories")
	}

	if err := db.MigrateTo(ctx, sqlDB, "0"); err != nil {
		t.Fatalf("migrate down to 0: %v", err)
	}
	var exists bool
	if err := sqlDB.QueryRow(`SELECT to_regclass('public.content_blocks') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatalf("check table: %v", err)
	}
	if exists {
		t.Error("content_blocks should be dropped after down migration")
	}
}

// Swapping two positions in one statement relies on the deferred unique constraint.
func TestMigrations_DeferredPositionConstraint(t *testing.T) {
	ctx := context.Background()
	sqlDB := dbtest.OpenPQ(t, dbtest.StartPostgres(t))
	if err := db.Migrate(ctx, sqlDB, "up"); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	owner := uuid.NewString()
	a, b := uuid.NewString(), uuid.NewString()
	insert := `INSERT INTO content_blocks (id, owner_type, owner_id, block_type, content, position)
		VALUES ($1, 'community', $2, 'text', '{"body":"x"}', $3)`
	if _, err := sqlDB.Exec(insert, a, owner, 0); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := sqlDB.Exec(insert, b, owner, 1); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	_, err := sqlDB.Exec(`UPDATE content_blocks SET position = CASE id WHEN $1::uuid THEN 1 WHEN $2::uuid THEN 0 END
		WHERE id IN ($1::uuid, $2::uuid)`, a, b)
	if err != nil {
		t.Fatalf("swap should succeed with deferred constraint: %v", err)
	}

	if _, err := sqlDB.Exec(insert, uuid.NewString(), owner, 0); err == nil {
		t.Error("duplicate position must still be rejected at commit")
	}
}
