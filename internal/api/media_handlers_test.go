package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake image body")

// brokenCoverEvents fails every SetCover call.
type brokenCoverEvents struct {
	*community.InMemoryEventRepository
}

func (brokenCoverEvents) SetCover(context.Context, string, string) error {
	return errors.New("connection reset")
}

func TestUploadGallery(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		query       string
		contentType string
		data        []byte
		wantCode    int
		wantErr     string
	}{
		{"png", ownerID, "", "image/png", pngBytes, http.StatusCreated, ""},
		{"gif for event design", ownerID, "?site=event_design", "image/gif", pngBytes, http.StatusCreated, ""},
		{"svg", ownerID, "", "image/svg+xml", []byte("<svg/>"), http.StatusUnsupportedMediaType, ErrCodeUnsupportedType},
		{"pdf", ownerID, "", "application/pdf", []byte("%PDF"), http.StatusUnsupportedMediaType, ErrCodeUnsupportedType},
		{"too large", ownerID, "", "image/jpeg", bytes.Repeat([]byte{1}, 10*1024*1024+1), http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{"event design limit", ownerID, "?site=event_design", "image/png", bytes.Repeat([]byte{1}, 5*1024*1024+1), http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{"unknown site", ownerID, "?site=banner", "image/png", pngBytes, http.StatusBadRequest, ErrCodeValidation},
		{"stranger", strangerID, "", "image/png", pngBytes, http.StatusForbidden, ErrCodeForbidden},
		{"stranger with bad file", strangerID, "", "application/pdf", []byte("%PDF"), http.StatusForbidden, ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			comm := f.seedCommunity("choir", community.StatusPublished)

			w := f.upload("/communities/"+comm.ID+"/media"+tt.query, tt.userID, tt.contentType, tt.data)
			expectStatus(t, w, tt.wantCode)

			var got UploadResponse
			resp := envelope(t, w, &got)
			items, _ := f.media.ListByCommunity(t.Context(), comm.ID)

			if tt.wantErr != "" {
				if resp.Code != tt.wantErr {
					t.Errorf("code = %s, want %s", resp.Code, tt.wantErr)
				}
				if f.store.Len() != 0 || len(items) != 0 {
					t.Errorf("rejected upload left %d objects and %d rows", f.store.Len(), len(items))
				}
				return
			}
			if got.Item == nil || got.CoverUpdated != nil {
				t.Fatalf("response = %+v", got)
			}
			if f.store.Len() != 1 || len(items) != 1 || items[0].ID != got.Item.ID {
				t.Errorf("store has %d objects, gallery has %d rows", f.store.Len(), len(items))
			}
			if !bytes.Equal(f.store.Bytes(got.Item.StoragePath), tt.data) {
				t.Error("stored object differs from the upload")
			}
		})
	}
}

func TestUploadEventCover(t *testing.T) {
	f := newFixture(t)
	comm := f.seedCommunity("choir", community.StatusPublished)
	ev := f.seedEvent(comm.ID, community.EventPublished)

	w := f.upload("/events/"+ev.ID+"/cover", ownerID, "image/webp", pngBytes)
	expectStatus(t, w, http.StatusCreated)
	var got UploadResponse
	envelope(t, w, &got)
	if got.CoverUpdated == nil || !*got.CoverUpdated || got.Warning != "" {
		t.Fatalf("response = %+v, want cover_updated true", got)
	}
	stored, _ := f.events.GetByID(t.Context(), ev.ID)
	if stored.CoverURL != got.Item.PublicURL {
		t.Errorf("cover = %q, want %q", stored.CoverURL, got.Item.PublicURL)
	}

	// Event covers accept only jpeg, png and webp.
	expectStatus(t, f.upload("/events/"+ev.ID+"/cover", ownerID, "image/gif", pngBytes), http.StatusUnsupportedMediaType)
}

func TestUploadEventCover_LinkFailureKeepsItem(t *testing.T) {
	var events *community.InMemoryEventRepository
	f := newFixture(t, func(d *Deps) {
		events = d.Events.(*community.InMemoryEventRepository)
		d.Events = brokenCoverEvents{events}
	})
	comm := f.seedCommunity("choir", community.StatusPublished)
	ev := f.seedEvent(comm.ID, community.EventPublished)

	w := f.upload("/events/"+ev.ID+"/cover", ownerID, "image/png", pngBytes)
	expectStatus(t, w, http.StatusCreated)
	var got UploadResponse
	envelope(t, w, &got)
	if got.CoverUpdated == nil || *got.CoverUpdated || got.Warning != msgCoverNotUpdated {
		t.Fatalf("response = %+v, want cover_updated false with a warning", got)
	}

	items, _ := f.media.ListByCommunity(t.Context(), comm.ID)
	if len(items) != 1 || f.store.Len() != 1 {
		t.Errorf("gallery rows = %d, objects = %d, want the item kept", len(items), f.store.Len())
	}
	stored, _ := events.GetByID(t.Context(), ev.ID)
	if stored.CoverURL != "" {
		t.Errorf("cover = %q, want unchanged", stored.CoverURL)
	}
	if actions := f.auditActions(audit.EntityEvent, ev.ID); len(actions) != 1 || actions[0] != audit.ActionLinkCover+":"+audit.OutcomeFailure {
		t.Errorf("audit = %v", actions)
	}
}

func TestUploadCommunityCover(t *testing.T) {
	f := newFixture(t)
	comm := f.seedCommunity("choir", community.StatusPublished)

	w := f.upload("/communities/"+comm.ID+"/cover", ownerID, "image/jpeg", pngBytes)
	expectStatus(t, w, http.StatusCreated)
	var got UploadResponse
	envelope(t, w, &got)
	stored, _ := f.communities.GetByID(t.Context(), comm.ID)
	if stored.CoverURL == "" || stored.CoverURL != got.Item.PublicURL {
		t.Errorf("cover = %q, want %q", stored.CoverURL, got.Item.PublicURL)
	}
}

func TestUploadAdmin(t *testing.T) {
	f := newFixture(t)
	comm := f.seedCommunity("choir", community.StatusPending)
	path := "/admin/media/" + comm.ID

	expectStatus(t, f.upload(path, ownerID, "image/png", pngBytes), http.StatusForbidden)
	expectStatus(t, f.upload(path, adminID, "image/png", pngBytes), http.StatusCreated)
	expectStatus(t, f.upload(path, adminID, "image/gif", pngBytes), http.StatusUnsupportedMediaType)
}

func TestDeleteMedia(t *testing.T) {
	f := newFixture(t)
	comm := f.seedCommunity("choir", community.StatusPublished)

	w := f.upload("/communities/"+comm.ID+"/media", ownerID, "image/png", pngBytes)
	expectStatus(t, w, http.StatusCreated)
	var up UploadResponse
	envelope(t, w, &up)

	expectStatus(t, f.do(http.MethodDelete, "/media/"+up.Item.ID, strangerID, nil), http.StatusForbidden)
	expectStatus(t, f.do(http.MethodDelete, "/media/"+up.Item.ID, ownerID, nil), http.StatusOK)
	expectStatus(t, f.do(http.MethodDelete, "/media/"+up.Item.ID, ownerID, nil), http.StatusNotFound)

	if f.store.Len() != 0 {
		t.Errorf("objects left = %d, want 0", f.store.Len())
	}
	w = f.do(http.MethodGet, "/communities/"+comm.ID+"/media", ownerID, nil)
	expectStatus(t, w, http.StatusOK)
	var items []*media.Item
	envelope(t, w, &items)
	if len(items) != 0 {
		t.Errorf("gallery = %d items, want 0", len(items))
	}
}

func TestUpload_RejectsDeletedOwner(t *testing.T) {
	f := newFixture(t)
	comm := f.seedCommunity("choir", community.StatusPublished)
	ev := f.seedEvent(comm.ID, community.EventPublished)
	gone := f.seedEvent(comm.ID, community.EventPublished)
	expectStatus(t, f.do(http.MethodDelete, "/events/"+gone.ID, ownerID, nil), http.StatusOK)

	expectStatus(t, f.upload("/events/"+gone.ID+"/cover", ownerID, "image/png", pngBytes), http.StatusConflict)

	expectStatus(t, f.do(http.MethodDelete, "/communities/"+comm.ID, ownerID, nil), http.StatusOK)
	uploads := []struct {
		path   string
		userID string
	}{
		{"/communities/" + comm.ID + "/media", ownerID},
		{"/communities/" + comm.ID + "/cover", ownerID},
		{"/events/" + ev.ID + "/cover", ownerID},
		{"/admin/media/" + comm.ID, adminID},
	}
	for _, u := range uploads {
		t.Run(u.path, func(t *testing.T) {
			w := f.upload(u.path, u.userID, "image/png", pngBytes)
			expectStatus(t, w, http.StatusConflict)
			if resp := envelope(t, w, nil); resp.Code != ErrCodeConflict {
				t.Errorf("code = %s, want %s", resp.Code, ErrCodeConflict)
			}
		})
	}

	items, _ := f.media.ListByCommunity(t.Context(), comm.ID)
	if len(items) != 0 || f.store.Len() != 0 {
		t.Errorf("deleted owners received %d rows and %d objects", len(items), f.store.Len())
	}
	stored, _ := f.communities.GetByID(t.Context(), comm.ID)
	if stored.CoverURL != "" {
		t.Errorf("cover = %q, want unchanged", stored.CoverURL)
	}
}
