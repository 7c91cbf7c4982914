package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atultiwari1305/coon/pkg/auth"
	"github.com/atultiwari1305/coon/pkg/cache"
	"github.com/atultiwari1305/coon/pkg/channel"
	"github.com/atultiwari1305/coon/pkg/chat"
	"github.com/atultiwari1305/coon/pkg/model"
	"github.com/atultiwari1305/coon/pkg/store"
)

type testServer struct {
	*server
	store store.MessageStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := channel.NewMemoryDirectory()
	if err := dir.EnsureGeneral(context.Background()); err != nil {
		t.Fatalf("EnsureGeneral: %v", err)
	}
	st := store.NewMemoryStore()
	registry := chat.NewRegistry(zerolog.Nop())
	svc := chat.NewService(st, cache.NewMemory(), registry, dir, time.Second, zerolog.Nop())

	return &testServer{
		server: &server{
			svc:       svc,
			registry:  registry,
			dir:       dir,
			auth:      auth.New("test-secret"),
			clientURL: "*",
			log:       zerolog.Nop(),
		},
		store: st,
	}
}

func (ts *testServer) request(t *testing.T, method, path, asUser string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if asUser != "" {
		token, err := ts.auth.GenerateToken(asUser)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router().ServeHTTP(rec, req)
	return rec
}

func TestLoginMintsAnonymousIdentity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/login", "", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.UserID, "Anon-") {
		t.Fatalf("expected anonymous identity, got %q", resp.UserID)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/channels/search?name=x", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateChannelConflict(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]string{"channelName": "random", "accessType": "public"}

	if rec := ts.request(t, http.MethodPost, "/api/channels/create", "alice", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if rec := ts.request(t, http.MethodPost, "/api/channels/create", "bob", body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestClearMessagesAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	if _, err := ts.svc.SendMessage(ctx, model.GeneralChannel, "alice", "hello", time.Now()); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	body := map[string]string{"channelName": model.GeneralChannel}

	if rec := ts.request(t, http.MethodPost, "/api/channels/clear-messages", "alice", body); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin clear: expected 403, got %d", rec.Code)
	}
	msgs, _ := ts.store.FetchNewest(ctx, model.GeneralChannel, 100)
	if len(msgs) != 1 {
		t.Fatalf("denied clear must be side-effect free, got %d messages", len(msgs))
	}

	if rec := ts.request(t, http.MethodPost, "/api/channels/clear-messages", model.SystemAdmin, body); rec.Code != http.StatusOK {
		t.Fatalf("admin clear: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	msgs, _ = ts.store.FetchNewest(ctx, model.GeneralChannel, 100)
	if len(msgs) != 0 {
		t.Fatalf("expected empty channel after admin clear, got %d", len(msgs))
	}
}

func TestDeleteMessageAuthorization(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	msg, err := ts.svc.SendMessage(ctx, model.GeneralChannel, "alice", "target", time.Now())
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	path := fmt.Sprintf("/api/channels/delete-message/%d", msg.ID)

	if rec := ts.request(t, http.MethodDelete, path, "mallory", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: expected 403, got %d", rec.Code)
	}
	if rec := ts.request(t, http.MethodDelete, path, "alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("sender delete: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := ts.request(t, http.MethodDelete, path, "alice", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete: expected 404, got %d", rec.Code)
	}
}

func TestLeaveGeneralForbidden(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/channels/leave", "alice", map[string]string{"channelName": model.GeneralChannel})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body)
	}
}

func TestAdminLeaveDeletesChannelAndMessages(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	if rec := ts.request(t, http.MethodPost, "/api/channels/create",
		"alice", map[string]string{"channelName": "doomed", "accessType": "public"}); rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	if _, err := ts.svc.SendMessage(ctx, "doomed", "alice", "soon gone", time.Now()); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	rec := ts.request(t, http.MethodPost, "/api/channels/leave", "alice", map[string]string{"channelName": "doomed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin leave: expected 200, got %d: %s", rec.Code, rec.Body)
	}

	if rec := ts.request(t, http.MethodGet, "/api/channels/info/doomed", "alice", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected channel gone, got %d", rec.Code)
	}
	msgs, _ := ts.store.FetchNewest(ctx, "doomed", 100)
	if len(msgs) != 0 {
		t.Fatalf("expected messages purged, got %d", len(msgs))
	}
}

func TestJoinedChannelsScopedToCaller(t *testing.T) {
	ts := newTestServer(t)

	// Listing another user's channels is refused; Joined would otherwise
	// enroll them into general on the caller's behalf.
	rec := ts.request(t, http.MethodGet, "/api/channels/joined/bob", "alice", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's list, got %d: %s", rec.Code, rec.Body)
	}
	if ch, err := ts.dir.Info(context.Background(), model.GeneralChannel); err != nil {
		t.Fatalf("Info: %v", err)
	} else {
		for _, m := range ch.Members {
			if m == "bob" {
				t.Fatal("refused listing must not enroll the named user")
			}
		}
	}

	for _, path := range []string{"/api/channels/joined", "/api/channels/joined/alice"} {
		rec := ts.request(t, http.MethodGet, path, "alice", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body)
		}
		var resp struct {
			Channels []model.Channel `json:"channels"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Channels) == 0 || resp.Channels[0].Name != model.GeneralChannel {
			t.Fatalf("%s: expected general in the joined list, got %+v", path, resp.Channels)
		}
	}
}

func TestChannelInfoNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/channels/info/missing", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
