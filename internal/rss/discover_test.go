package rss

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverFeedURL_AbsoluteHref(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<link rel="stylesheet" href="/style.css">
			<link rel="alternate" type="application/rss+xml" href="https://example.com/feed.xml">
		</head><body></body></html>`))
	}))
	defer srv.Close()

	got, err := DiscoverFeedURL(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.com/feed.xml" {
		t.Errorf("feed url = %q", got)
	}
}

func TestDiscoverFeedURL_RelativeHrefResolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<link rel="alternate" type="application/atom+xml" href="/feeds/atom.xml"/>
		</head></html>`))
	}))
	defer srv.Close()

	got, err := DiscoverFeedURL(ctx, srv.URL+"/blog/post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != srv.URL+"/feeds/atom.xml" {
		t.Errorf("feed url = %q, want %q", got, srv.URL+"/feeds/atom.xml")
	}
}

func TestDiscoverFeedURL_NoFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>No feeds here</title></head></html>`))
	}))
	defer srv.Close()

	if _, err := DiscoverFeedURL(ctx, srv.URL); err == nil {
		t.Fatal("expected error for a page without a feed link")
	}
}

func TestDiscoverFeedURL_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := DiscoverFeedURL(ctx, srv.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
