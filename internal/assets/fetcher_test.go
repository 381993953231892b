package assets

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchImageEncodesDataURL(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	fetcher := NewFetcher(nil)
	encoded, err := fetcher.FetchImage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	if encoded != want {
		t.Fatalf("encoded = %q, want %q", encoded, want)
	}
}

func TestFetchImageDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	fetcher := NewFetcher(nil)
	encoded, err := fetcher.FetchImage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.HasPrefix(encoded, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %q", encoded)
	}
}

func TestFetchImageNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewFetcher(nil)
	if _, err := fetcher.FetchImage(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}
