// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package jellybridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/connect"
	"github.com/tomtom215/jellybridge/credentials"
	"github.com/tomtom215/jellybridge/rest"
)

// events collects emitted events across goroutines.
type events struct {
	mu   sync.Mutex
	seen []string
}

func (e *events) record(event string, _ map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, event)
}

func (e *events) has(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.seen {
		if s == event {
			return true
		}
	}
	return false
}

func (e *events) waitFor(t *testing.T, event string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e.has(event) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q event", event)
}

// fullServer fakes the endpoints one sign-in plus realtime startup
// touches: public info, login, and the websocket.
func fullServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/system/info/public", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Id": "srv-1", "ServerName": "Den"})
	})
	mux.HandleFunc("/Users/AuthenticateByName", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"User":        map[string]string{"Id": "user-1", "Name": "alice"},
			"AccessToken": "tok-good",
			"ServerId":    "srv-1",
		})
	})
	mux.HandleFunc("/socket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
	})

	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, cb EventFunc) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.App.DeviceID = "test-device"
	cfg.Log.Level = "disabled"

	client, err := New(cfg, Options{Callback: cb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestConnectAndLoginFlow(t *testing.T) {
	srv := fullServer(t)
	defer srv.Close()

	evs := &events{}
	client := newTestClient(t, evs.record)

	result := client.ConnectToAddress(context.Background(), srv.URL, connect.Options{})
	if result.State != connect.ServerSignIn {
		t.Fatalf("expected ServerSignIn, got %s", result.State)
	}

	data, err := client.Login(context.Background(), srv.URL, "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if data.AccessToken != "tok-good" {
		t.Errorf("expected token, got %q", data.AccessToken)
	}
	if !evs.has("ServerOnline") {
		t.Error("expected ServerOnline after login")
	}
	if client.Session().Token() != "tok-good" {
		t.Errorf("session token not bound, got %q", client.Session().Token())
	}
}

func TestStartRequiresSignIn(t *testing.T) {
	client := newTestClient(t, nil)

	err := client.Start(context.Background(), StartOptions{Realtime: true})
	if !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestStartAndStopRealtime(t *testing.T) {
	srv := fullServer(t)
	defer srv.Close()

	evs := &events{}
	client := newTestClient(t, evs.record)

	if _, err := client.Login(context.Background(), srv.URL, "alice", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Bind the session to the fake server for the websocket dial.
	client.Session().SetServer(srv.URL)

	if err := client.Start(context.Background(), StartOptions{Realtime: true}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	evs.waitFor(t, "WebSocketConnect")
	client.Stop()

	if !evs.has("WebSocketDisconnect") {
		t.Error("expected WebSocketDisconnect after Stop")
	}
}

func TestPlain401RevokesStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	evs := &events{}
	client := newTestClient(t, evs.record)

	client.Credentials().Update(func(cs *credentials.CredentialSet) {
		cs.Servers = append(cs.Servers, credentials.ServerRecord{
			ID:          "srv-1",
			AccessToken: "tok-cached",
		})
	})
	client.Session().SetServer(srv.URL)
	client.Session().SetServerID("srv-1")
	client.Session().SetToken("tok-cached")

	_, err := client.API().Do(context.Background(), rest.Request{Path: "Items/1234"})
	if rest.KindOf(err) != rest.FailureUnauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}

	if client.Session().Token() != "" {
		t.Error("session token must be cleared")
	}
	rec, ok := client.Credentials().ServerByID("srv-1")
	if !ok {
		t.Fatal("server record missing from store")
	}
	if rec.AccessToken != "" {
		t.Errorf("stored token must be revoked, got %q", rec.AccessToken)
	}
	if !evs.has("Unauthorized") {
		t.Error("expected Unauthorized event")
	}
}

func TestSendWithoutTransport(t *testing.T) {
	client := newTestClient(t, nil)
	if err := client.Send("KeepAlive", nil); err == nil {
		t.Error("expected error before Start")
	}
}
