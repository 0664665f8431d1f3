package ctlfile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("INTO TABLE t (\nCOL_A\n)"))
		}))
		defer srv.Close()

		f := NewHTTPFetcher(5 * time.Second)
		text, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch() error: %v", err)
		}
		if text != "INTO TABLE t (\nCOL_A\n)" {
			t.Errorf("Fetch() = %q", text)
		}
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		f := NewHTTPFetcher(5 * time.Second)
		if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
			t.Fatal("expected error for 404 response")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := NewHTTPFetcher(5 * time.Second)
		if _, err := f.Fetch(ctx, srv.URL); err == nil {
			t.Fatal("expected error for cancelled context")
		}
	})
}
