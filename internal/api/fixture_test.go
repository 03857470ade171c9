package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/auth"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/pagecache"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/profile"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/storage"
)

const (
	ownerID    = "11111111-1111-1111-1111-111111111111"
	strangerID = "22222222-2222-2222-2222-222222222222"
	adminID    = "33333333-3333-3333-3333-333333333333"

	categoryID = "44444444-4444-4444-4444-444444444444"
)

// fixture is a router over in-memory repositories.
type fixture struct {
	t       *testing.T
	handler http.Handler
	tokens  *auth.JWTService

	communities *community.InMemoryCommunityRepository
	events      *community.InMemoryEventRepository
	blocks      *content.InMemoryRepository
	media       *media.InMemoryRepository
	store       *storage.MemoryStore
	audit       *audit.InMemoryRepository
}

type fixtureOption func(d *Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		t:           t,
		tokens:      auth.NewJWTService("test-secret-with-enough-length-0123456789"),
		communities: community.NewInMemoryCommunityRepository(),
		events:      community.NewInMemoryEventRepository(),
		blocks:      content.NewInMemoryRepository(),
		media:       media.NewInMemoryRepository(),
		store:       storage.NewMemoryStore("https://cdn.example.com"),
		audit:       audit.NewInMemoryRepository(),
	}

	profiles := profile.NewInMemoryRepository()
	ctx := context.Background()
	for _, p := range []*profile.Profile{
		{ID: ownerID, Role: profile.RoleUser},
		{ID: strangerID, Role: profile.RoleUser},
		{ID: adminID, Role: profile.RoleAdmin},
	} {
		if err := profiles.Upsert(ctx, p); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}

	d := Deps{
		Tokens:      f.tokens,
		Communities: f.communities,
		Events:      f.events,
		Categories: community.NewInMemoryCategoryRepository(
			community.Category{ID: categoryID, Slug: "music", Name: "Music"},
		),
		Blocks:         f.blocks,
		Policies:       media.DefaultPolicies(5, 10),
		PageCache:      pagecache.New(pagecache.NewMemoryStore(), time.Minute, nil),
		Audit:          audit.NewRecorder(f.audit, nil),
		ContentMetrics: content.NewMetrics(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	d.Access = access.NewChecker(profiles, d.Communities, d.Events)
	d.Uploader = media.NewUploader(media.UploaderConfig{
		Repository: f.media,
		Store:      f.store,
		Authorizer: d.Access,
		Policies:   d.Policies,
	})
	f.handler = NewRouter(d)
	return f
}

func (f *fixture) token(userID string) string {
	f.t.Helper()
	tok, err := f.tokens.GenerateAccessToken(userID, userID+"@example.com")
	if err != nil {
		f.t.Fatalf("generate token: %v", err)
	}
	return tok
}

// do sends a request as userID; an empty userID sends it anonymously.
func (f *fixture) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			f.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(req, userID)
}

func (f *fixture) send(req *http.Request, userID string) *httptest.ResponseRecorder {
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(userID))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// upload posts a multipart file with the declared content type.
func (f *fixture) upload(path, userID, contentType string, data []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+FileField+`"; filename="upload"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		f.t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		f.t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		f.t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.send(req, userID)
}

func (f *fixture) seedCommunity(slug string, status community.Status) *community.Community {
	f.t.Helper()
	c := &community.Community{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    "Community " + slug,
		Slug:    slug,
		Status:  status,
	}
	if err := f.communities.Insert(context.Background(), c); err != nil {
		f.t.Fatalf("seed community: %v", err)
	}
	return c
}

func (f *fixture) seedEvent(communityID string, status community.EventStatus) *community.Event {
	f.t.Helper()
	start := time.Now().Add(24 * time.Hour).UTC()
	e := &community.Event{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		Title:       "Opening night",
		StartsAt:    start,
		EndsAt:      start.Add(2 * time.Hour),
		Status:      status,
	}
	if err := f.events.Insert(context.Background(), e); err != nil {
		f.t.Fatalf("seed event: %v", err)
	}
	return e
}

func (f *fixture) seedBlock(owner content.Owner, text string) *content.Block {
	f.t.Helper()
	b := &content.Block{ID: uuid.NewString(), Owner: owner, Content: content.Text{Body: text}}
	if err := f.blocks.Append(context.Background(), b); err != nil {
		f.t.Fatalf("seed block: %v", err)
	}
	return b
}

func (f *fixture) auditActions(entityType, entityID string) []string {
	f.t.Helper()
	logs, err := f.audit.QueryByEntity(context.Background(), entityType, entityID, 0)
	if err != nil {
		f.t.Fatalf("query audit: %v", err)
	}
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action + ":" + l.Outcome
	}
	return out
}

// envelope decodes the result envelope, unmarshalling data into out when set.
func envelope(t *testing.T, w *httptest.ResponseRecorder, out any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope: %v, body: %s", err, w.Body.String())
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			t.Fatalf("decode data: %v, body: %s", err, w.Body.String())
		}
	}
	return raw.Response
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, want, w.Body.String())
	}
}
