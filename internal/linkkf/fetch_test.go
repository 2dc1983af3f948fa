package linkkf

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/testutil"
)

func fastRuntime() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		HTTPTimeout:  5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 10 * time.Millisecond,
	}
}

func TestFetchPageHeaders(t *testing.T) {
	var gotUA, gotLang, gotReferer string
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(fastRuntime())
	body, err := f.FetchPage(context.Background(), srv.URL, "https://kr.linkkf.net/")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("User-Agent not browser-like: %q", gotUA)
	}
	if gotLang == "" {
		t.Error("Accept-Language header missing")
	}
	if gotReferer != "https://kr.linkkf.net/" {
		t.Errorf("Referer = %q", gotReferer)
	}
}

func TestFetchPageRetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int64
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	f := NewFetcher(fastRuntime())
	body, err := f.FetchPage(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("FetchPage failed after retries: %v", err)
	}
	if body != "finally" {
		t.Errorf("body = %q", body)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	var hits atomic.Int64
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(fastRuntime())
	_, err := f.FetchPage(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatal("FetchPage should fail on persistent 403")
	}
	if kind := types.KindOf(err); kind != types.KindNetwork {
		t.Errorf("error kind = %v, want network", kind)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3 attempts", hits.Load())
	}
}

func TestFetchPageCancelled(t *testing.T) {
	srv := testutil.NewHTTPServerT(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	f := NewFetcher(fastRuntime())
	_, err := f.FetchPage(ctx, srv.URL, "")
	if err == nil {
		t.Fatal("FetchPage should fail when cancelled")
	}
	if kind := types.KindOf(err); kind != types.KindCancelled {
		t.Errorf("error kind = %v, want cancelled", kind)
	}
}
