package content

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db/dbtest"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	return map[string]Repository{
		"memory": NewInMemoryRepository(),
		"gorm":   NewGormRepository(dbtest.NewSQLite(t, &Row{})),
	}
}

func appendTexts(t *testing.T, repo Repository, owner Owner, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		b := &Block{ID: uuid.NewString(), Owner: owner, Content: Text{Body: fmt.Sprintf("paragraph %d", i)}}
		if err := repo.Append(context.Background(), b); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if b.Position != i {
			t.Fatalf("Append() position = %d, want %d", b.Position, i)
		}
		ids[i] = b.ID
	}
	return ids
}

func positionsOf(t *testing.T, repo Repository, owner Owner) []string {
	t.Helper()
	blocks, err := repo.ListByOwner(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		if b.Position != i {
			t.Fatalf("positions not contiguous: block %s at %d, index %d", b.ID, b.Position, i)
		}
		ids[i] = b.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRepository_ReorderPermutations(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := Owner{Type: OwnerCommunity, ID: uuid.NewString()}
			ids := appendTexts(t, repo, owner, 6)

			rng := rand.New(rand.NewSource(7))
			for round := 0; round < 10; round++ {
				perm := append([]string(nil), ids...)
				rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

				if err := repo.Reorder(ctx, owner, perm); err != nil {
					t.Fatalf("Reorder() error = %v", err)
				}
				if got := positionsOf(t, repo, owner); !equalIDs(got, perm) {
					t.Fatalf("round %d: order = %v, want %v", round, got, perm)
				}

				if err := repo.Reorder(ctx, owner, perm); err != nil {
					t.Fatalf("repeated Reorder() error = %v", err)
				}
				if got := positionsOf(t, repo, owner); !equalIDs(got, perm) {
					t.Fatalf("round %d: reorder not idempotent", round)
				}
			}
		})
	}
}

func TestRepository_ReorderRejectsBadInput(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := Owner{Type: OwnerEvent, ID: uuid.NewString()}
			other := Owner{Type: OwnerEvent, ID: uuid.NewString()}
			ids := appendTexts(t, repo, owner, 3)
			foreign := appendTexts(t, repo, other, 1)

			tests := []struct {
				name string
				ids  []string
				want error
			}{
				{"duplicate", []string{ids[0], ids[0], ids[1]}, ErrDuplicateBlock},
				{"subset", ids[:2], ErrBlockSetMismatch},
				{"foreign block", []string{ids[0], ids[1], foreign[0]}, ErrBlockSetMismatch},
				{"unknown id", []string{ids[2], ids[1], uuid.NewString()}, ErrBlockSetMismatch},
			}
			for _, tt := range tests {
				if err := repo.Reorder(ctx, owner, tt.ids); !errors.Is(err, tt.want) {
					t.Errorf("%s: Reorder() error = %v, want %v", tt.name, err, tt.want)
				}
				if got := positionsOf(t, repo, owner); !equalIDs(got, ids) {
					t.Errorf("%s: rejected reorder changed order to %v", tt.name, got)
				}
			}
		})
	}
}

func TestRepository_DeleteCompacts(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := Owner{Type: OwnerCommunity, ID: uuid.NewString()}
			ids := appendTexts(t, repo, owner, 4)

			if err := repo.Delete(ctx, ids[1]); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			want := []string{ids[0], ids[2], ids[3]}
			if got := positionsOf(t, repo, owner); !equalIDs(got, want) {
				t.Errorf("order after delete = %v, want %v", got, want)
			}

			next := &Block{ID: uuid.NewString(), Owner: owner, Content: Heading{Text: "More", Level: 2}}
			if err := repo.Append(ctx, next); err != nil || next.Position != 3 {
				t.Errorf("Append() after delete position = %d, err = %v", next.Position, err)
			}

			if err := repo.Delete(ctx, ids[1]); !errors.Is(err, ErrBlockNotFound) {
				t.Errorf("second Delete() error = %v", err)
			}
		})
	}
}

func TestRepository_UpdateContent(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			owner := Owner{Type: OwnerCommunity, ID: uuid.NewString()}
			b := &Block{ID: uuid.NewString(), Owner: owner, Content: Image{URL: "https://cdn.example.com/a.jpg"}}
			if err := repo.Append(ctx, b); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			updated, err := repo.UpdateContent(ctx, b.ID, Image{URL: "https://cdn.example.com/b.jpg", Alt: "crowd"})
			if err != nil {
				t.Fatalf("UpdateContent() error = %v", err)
			}
			if img := updated.Content.(Image); img.URL != "https://cdn.example.com/b.jpg" || img.Alt != "crowd" {
				t.Errorf("updated content = %#v", updated.Content)
			}

			got, _ := repo.GetByID(ctx, b.ID)
			if got.Content.(Image).Alt != "crowd" {
				t.Errorf("stored content = %#v", got.Content)
			}

			if _, err := repo.UpdateContent(ctx, b.ID, Text{Body: "nope"}); !errors.Is(err, ErrBlockTypeMismatch) {
				t.Errorf("type change error = %v", err)
			}
			if _, err := repo.UpdateContent(ctx, uuid.NewString(), Text{Body: "x"}); !errors.Is(err, ErrBlockNotFound) {
				t.Errorf("missing block error = %v", err)
			}
		})
	}
}

func TestRepository_OwnersAreIsolated(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			id := uuid.NewString()
			community := Owner{Type: OwnerCommunity, ID: id}
			event := Owner{Type: OwnerEvent, ID: id}
			appendTexts(t, repo, community, 2)
			appendTexts(t, repo, event, 1)

			if got := positionsOf(t, repo, community); len(got) != 2 {
				t.Errorf("community blocks = %d", len(got))
			}
			if got := positionsOf(t, repo, event); len(got) != 1 {
				t.Errorf("event blocks = %d", len(got))
			}
		})
	}
}

func TestMetrics_ObserveReorder(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.ObserveReorder(OwnerCommunity, nil)
	m.ObserveReorder(OwnerCommunity, ErrDuplicateBlock)
	m.ObserveReorder(OwnerEvent, errors.New("connection reset"))

	for _, tc := range []struct {
		owner, outcome string
	}{
		{"community", OutcomeSuccess},
		{"community", OutcomeRejected},
		{"event", OutcomeError},
	} {
		var metric dto.Metric
		if err := m.reorders.WithLabelValues(tc.owner, tc.outcome).Write(&metric); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if got := metric.GetCounter().GetValue(); got != 1 {
			t.Errorf("%s/%s = %v, want 1", tc.owner, tc.outcome, got)
		}
	}
}
