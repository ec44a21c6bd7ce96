package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchStorySelectsSelfPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/stories/hot.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		if r.Header.Get("User-Agent") != "storyreel-test/1.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"children": [
					{"data": {"title": "Link post", "selftext": "", "is_self": false}},
					{"data": {"title": "Empty self", "selftext": "", "is_self": true}},
					{"data": {"title": "The one", "selftext": "It was a dark night.", "is_self": true}}
				]
			}
		}`))
	}))
	defer server.Close()

	svc := NewRedditService(server.URL, "storyreel-test/1.0")

	title, body, err := svc.FetchStory(context.Background(), "stories")
	if err != nil {
		t.Fatalf("FetchStory failed: %v", err)
	}
	if title != "The one" {
		t.Errorf("expected the only valid post, got title %q", title)
	}
	if body != "It was a dark night." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFetchStoryNoTextPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"children": [
					{"data": {"title": "Link only", "selftext": "", "is_self": false}}
				]
			}
		}`))
	}))
	defer server.Close()

	svc := NewRedditService(server.URL, "storyreel-test/1.0")

	_, _, err := svc.FetchStory(context.Background(), "pics")
	if !errors.Is(err, ErrNoStories) {
		t.Fatalf("expected ErrNoStories, got %v", err)
	}
}

func TestFetchStoryProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewRedditService(server.URL, "storyreel-test/1.0")

	_, _, err := svc.FetchStory(context.Background(), "stories")
	if !errors.Is(err, ErrNoStories) {
		t.Fatalf("expected ErrNoStories on provider failure, got %v", err)
	}
}

func TestFetchStoryBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := NewRedditService(server.URL, "storyreel-test/1.0")

	_, _, err := svc.FetchStory(context.Background(), "stories")
	if !errors.Is(err, ErrNoStories) {
		t.Fatalf("expected ErrNoStories on decode failure, got %v", err)
	}
}
