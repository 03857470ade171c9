package db

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db/dbtest"
)

type txProbe struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	client := FromGorm(dbtest.NewSQLite(t, &txProbe{}))
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&txProbe{Name: "kept"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx() commit error = %v", err)
	}

	boom := errors.New("boom")
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&txProbe{Name: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	var names []string
	if err := client.DB().Model(&txProbe{}).Order("id").Pluck("name", &names).Error; err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if len(names) != 1 || names[0] != "kept" {
		t.Errorf("rows = %v, want [kept]", names)
	}
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	client := FromGorm(dbtest.NewSQLite(t, &txProbe{}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&txProbe{Name: "panic"})
			panic("fail")
		})
	}()

	var count int64
	client.DB().Model(&txProbe{}).Count(&count)
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestNew_RequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Error("expected error for empty DSN")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(entries))
	}
	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", e.Name())
		}
	}
}
