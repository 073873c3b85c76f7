package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meeting-insights-go/internal/types"
)

const samplePage = `<!doctype html>
<html><head><title>Weekly Sync</title></head>
<body>
<script type="application/json" data-role="call-payload">
{
  "id": 42,
  "share_url": "https://platform.example/share/abc",
  "title": "Weekly Sync",
  "date": "Tue, Aug 25",
  "duration": "32 mins",
  "host_name": "Ana Souza",
  "company_domain": "example.com",
  "participants": [
    {"speaker_id": "p1", "name": "Ana Souza", "is_host": true},
    {"speaker_id": "p2", "name": "Bruno Lima", "is_host": false}
  ],
  "summary": {
    "purpose": "Align on roadmap",
    "key_takeaways": ["ship v2"],
    "topics": [{"title": "Roadmap", "points": ["Q3 scope"]}],
    "next_steps": ["send notes"]
  },
  "media_url": "https://media.example/stream/42/playlist.m3u8"
}
</script>
</body></html>`

func newFetcher(url string) (*HTTPFetcher, types.WorkItem) {
	f := NewHTTPFetcher([]Cookie{{Name: "session", Value: "tok"}}, 200*time.Millisecond, nil)
	item := types.WorkItem{ID: "42", URL: url, Title: "Weekly Sync"}
	return f, item
}

func TestFetchParsesEmbeddedPayload(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	f, item := newFetcher(srv.URL)
	meta, err := f.Fetch(context.Background(), item)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotCookie != "session=tok" {
		t.Fatalf("cookie header not forwarded, got %q", gotCookie)
	}
	if meta.ID != "42" || meta.Title != "Weekly Sync" {
		t.Fatalf("identity fields wrong: %+v", meta)
	}
	if meta.HostName != "Ana Souza" || len(meta.Participants) != 2 {
		t.Fatalf("participants wrong: %+v", meta)
	}
	if meta.MediaURL != "https://media.example/stream/42/playlist.m3u8" {
		t.Fatalf("media url wrong: %q", meta.MediaURL)
	}
	if meta.Summary == nil || meta.Summary.Purpose != "Align on roadmap" {
		t.Fatalf("summary wrong: %+v", meta.Summary)
	}
	if len(meta.RawPage) == 0 {
		t.Fatal("raw page not preserved")
	}
}

func TestFetchAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f, item := newFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), item)
	if !errors.Is(err, types.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f, item := newFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), item)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchRetriesTransientServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	f, item := newFetcher(srv.URL)
	f.RetryCeiling = 5 * time.Second
	meta, err := f.Fetch(context.Background(), item)
	if err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", calls)
	}
	if meta.Title != "Weekly Sync" {
		t.Fatalf("unexpected meta after retry: %+v", meta)
	}
}

func TestFetchMissingPayloadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no payload here</body></html>")
	}))
	defer srv.Close()

	f, item := newFetcher(srv.URL)
	if _, err := f.Fetch(context.Background(), item); err == nil {
		t.Fatal("expected error for page without payload")
	}
}
