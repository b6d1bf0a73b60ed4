package wget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProber() *Prober {
	p := NewProber(quietLogger())
	p.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return p
}

func TestContentLengthFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/file", http.StatusFound)
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "1288490188")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	size, err := newTestProber().ContentLength(context.Background(), srv.URL+"/redirect")
	require.NoError(t, err)
	assert.EqualValues(t, 1288490188, size)
}

func TestContentLengthRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Length", "42")
	}))
	defer srv.Close()

	size, err := newTestProber().ContentLength(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 42, size)
	assert.EqualValues(t, 2, calls.Load())
}

func TestContentLengthClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestProber().ContentLength(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
