package acs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"breakwatch/internal/config"
	"breakwatch/internal/credstore"
	"breakwatch/internal/model"
)

type vendorStub struct {
	mux        *http.ServeMux
	tokenCalls int
	eventPages [][]model.RawEvent
}

func newVendorStub(t *testing.T) *vendorStub {
	t.Helper()
	v := &vendorStub{mux: http.NewServeMux()}
	v.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		v.tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	})
	v.mux.HandleFunc("/v1/doors", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"doors": []model.Door{
					{ID: "door-1", Name: "Back Entrance", SiteID: r.URL.Query().Get("siteId"), Timezone: "UTC"},
				},
			},
		})
	})
	v.mux.HandleFunc("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		page := 0
		if r.URL.Query().Get("pageToken") == "next-1" {
			page = 1
		}
		token := ""
		if page == 0 && len(v.eventPages) > 1 {
			token = "next-1"
		}
		var events []model.RawEvent
		if page < len(v.eventPages) {
			events = v.eventPages[page]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"events": events, "token": token},
		})
	})
	return v
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, credstore.Store) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	creds := credstore.NewMemory()
	client := NewClient(config.VendorConfig{
		BaseURL:      ts.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		Timeout:      2 * time.Second,
	}, creds, nil)
	return client, creds
}

func TestFetchDoorsCachesCredential(t *testing.T) {
	stub := newVendorStub(t)
	client, creds := newTestClient(t, stub.mux)

	for i := 0; i < 3; i++ {
		doors, err := client.FetchDoors(context.Background(), "site-1")
		if err != nil {
			t.Fatalf("FetchDoors: %v", err)
		}
		if len(doors) != 1 || doors[0].ID != "door-1" {
			t.Fatalf("doors = %+v", doors)
		}
	}
	if stub.tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", stub.tokenCalls)
	}
	cred, ok, err := creds.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("credential not cached: ok=%v err=%v", ok, err)
	}
	if cred.AccessToken != "tok-1" {
		t.Fatalf("cached token = %q", cred.AccessToken)
	}
}

func TestFetchDoorsRefreshesExpiredCredential(t *testing.T) {
	stub := newVendorStub(t)
	client, creds := newTestClient(t, stub.mux)
	_ = creds.Save(context.Background(), model.Credential{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})
	if _, err := client.FetchDoors(context.Background(), "site-1"); err != nil {
		t.Fatalf("FetchDoors: %v", err)
	}
	if stub.tokenCalls != 1 {
		t.Fatalf("expired credential must trigger a refresh, token calls = %d", stub.tokenCalls)
	}
}

func TestFetchAccessEventsFollowsContinuationToken(t *testing.T) {
	stub := newVendorStub(t)
	stub.eventPages = [][]model.RawEvent{
		{{ID: "e1", Type: "DOOR_ACCESS_GRANTED", Timestamp: "2024-03-14T09:00:00Z"}},
		{{ID: "e2", Type: "DOOR_ACCESS_GRANTED", Timestamp: "2024-03-14T09:10:00Z"}},
	}
	client, _ := newTestClient(t, stub.mux)

	events, err := client.FetchAccessEvents(context.Background(), 1_710_000_000, 1_710_086_400)
	if err != nil {
		t.Fatalf("FetchAccessEvents: %v", err)
	}
	if len(events) != 2 || events[0].ID != "e1" || events[1].ID != "e2" {
		t.Fatalf("events = %+v", events)
	}
}

func TestFetchFailuresWrapErrUpstream(t *testing.T) {
	stub := newVendorStub(t)
	failing := http.NewServeMux()
	failing.Handle("/oauth/token", stub.mux)
	failing.HandleFunc("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, failing)

	if _, err := client.FetchAccessEvents(context.Background(), 0, 1); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	down, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := down.FetchDoors(context.Background(), ""); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream from 404 token endpoint, got %v", err)
	}
}
