package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/db/dbtest"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	return map[string]Repository{
		"memory": NewInMemoryRepository(),
		"gorm":   NewGormRepository(dbtest.NewSQLite(t, &Log{})),
	}
}

func TestRepository_Append(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			entry := Entry{
				UserID:     "user-1",
				EntityType: EntityCommunity,
				EntityID:   "community-1",
				Action:     ActionPublish,
				Outcome:    OutcomeSuccess,
				RequestID:  "req-456",
			}

			log, err := repo.Append(context.Background(), entry)
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if log.ID == "" {
				t.Error("Append() should generate an ID")
			}
			if log.UserID != entry.UserID || log.EntityID != entry.EntityID || log.Action != entry.Action {
				t.Errorf("Append() = %+v, want fields of %+v", log, entry)
			}
			if log.RequestID != entry.RequestID || log.Outcome != OutcomeSuccess {
				t.Errorf("Append() RequestID/Outcome = %q/%q", log.RequestID, log.Outcome)
			}
			if time.Since(log.CreatedAt) > 5*time.Second {
				t.Error("Append() CreatedAt should be recent")
			}
		})
	}
}

func TestRepository_QueryByEntity(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []Entry{
				{UserID: "user1", EntityType: EntityCommunity, EntityID: "c-1", Action: ActionSubmit},
				{UserID: "admin", EntityType: EntityCommunity, EntityID: "c-1", Action: ActionPublish},
				{UserID: "user3", EntityType: EntityCommunity, EntityID: "c-2", Action: ActionSubmit},
				{UserID: "user1", EntityType: EntityEvent, EntityID: "c-1", Action: ActionTogglePublish},
				{UserID: "admin", EntityType: EntityCommunity, EntityID: "c-1", Action: ActionFeature},
			}
			for _, entry := range entries {
				if _, err := repo.Append(ctx, entry); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
				time.Sleep(time.Millisecond)
			}

			results, err := repo.QueryByEntity(ctx, EntityCommunity, "c-1", 0)
			if err != nil {
				t.Fatalf("QueryByEntity() error = %v", err)
			}
			if len(results) != 3 {
				t.Fatalf("QueryByEntity() returned %d logs, want 3", len(results))
			}
			wantActions := []string{ActionFeature, ActionPublish, ActionSubmit}
			for i, log := range results {
				if log.Action != wantActions[i] {
					t.Errorf("results[%d].Action = %q, want %q (newest first)", i, log.Action, wantActions[i])
				}
			}

			limited, err := repo.QueryByEntity(ctx, EntityCommunity, "c-1", 2)
			if err != nil {
				t.Fatalf("QueryByEntity(limit) error = %v", err)
			}
			if len(limited) != 2 {
				t.Errorf("QueryByEntity(limit=2) returned %d logs", len(limited))
			}
		})
	}
}

func TestRepository_QueryByUser(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, user := range []string{"user1", "user2", "user1", "user1"} {
				if _, err := repo.Append(ctx, Entry{UserID: user, EntityType: EntityBlock, EntityID: "b-1", Action: ActionReorder}); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			results, err := repo.QueryByUser(ctx, "user1", 0)
			if err != nil {
				t.Fatalf("QueryByUser() error = %v", err)
			}
			if len(results) != 3 {
				t.Errorf("QueryByUser() returned %d logs, want 3", len(results))
			}
			for _, log := range results {
				if log.UserID != "user1" {
					t.Errorf("QueryByUser() returned log for %q", log.UserID)
				}
			}
		})
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	log, _ := repo.Append(ctx, Entry{UserID: "u", EntityType: EntityMedia, EntityID: "m-1", Action: ActionUpload})
	log.Action = "tampered"

	results, _ := repo.QueryByEntity(ctx, EntityMedia, "m-1", 0)
	results[0].UserID = "tampered"

	again, _ := repo.QueryByEntity(ctx, EntityMedia, "m-1", 0)
	if again[0].Action != ActionUpload || again[0].UserID != "u" {
		t.Errorf("stored log was modified through a returned pointer: %+v", again[0])
	}
}

func TestRecord_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	tests := []struct {
		name       string
		repo       Repository
		entityType string
		entityID   string
		action     string
		wantErr    error
	}{
		{"nil repository", nil, EntityEvent, "e-1", ActionDelete, ErrNilRepository},
		{"empty entity type", repo, "", "e-1", ActionDelete, ErrInvalidEntityType},
		{"unknown entity type", repo, "scene", "e-1", ActionDelete, ErrInvalidEntityType},
		{"empty entity ID", repo, EntityEvent, "", ActionDelete, ErrInvalidEntityID},
		{"unknown action", repo, EntityEvent, "e-1", "view", ErrInvalidAction},
		{"valid", repo, EntityEvent, "e-1", ActionDelete, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Record(ctx, tt.repo, tt.entityType, tt.entityID, tt.action, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Record() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_UsesRequestContext(t *testing.T) {
	repo := NewInMemoryRepository()

	var log *Log
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.SetUserID(r.Context(), "admin-1")
		var err error
		log, err = Record(ctx, repo, EntityCommunity, "c-9", ActionUnpublish, errors.New("store down"))
		if err != nil {
			t.Errorf("Record() error = %v", err)
		}
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/communities/c-9/unpublish", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if log == nil {
		t.Fatal("Record() was not called")
	}
	if log.UserID != "admin-1" {
		t.Errorf("UserID = %q, want admin-1", log.UserID)
	}
	if log.RequestID != "req-abc" {
		t.Errorf("RequestID = %q, want req-abc", log.RequestID)
	}
	if log.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %q, want %q", log.Outcome, OutcomeFailure)
	}
}

type failingRepository struct{ InMemoryRepository }

func (*failingRepository) Append(context.Context, Entry) (*Log, error) {
	return nil, errors.New("insert failed")
}

func TestRecorder_SwallowsErrors(t *testing.T) {
	ctx := context.Background()

	var nilRecorder *Recorder
	nilRecorder.Record(ctx, EntityEvent, "e-1", ActionDelete, nil)
	NewRecorder(nil, nil).Record(ctx, EntityEvent, "e-1", ActionDelete, nil)
	NewRecorder(&failingRepository{}, nil).Record(ctx, EntityEvent, "e-1", ActionDelete, nil)

	repo := NewInMemoryRepository()
	NewRecorder(repo, nil).Record(ctx, EntityEvent, "e-1", ActionRestore, nil)
	got, _ := repo.QueryByEntity(ctx, EntityEvent, "e-1", 0)
	if len(got) != 1 || got[0].Action != ActionRestore {
		t.Errorf("Recorder did not append: %+v", got)
	}
}
