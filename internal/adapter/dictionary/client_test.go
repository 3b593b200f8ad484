package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWord_Recognized(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`[{"word":"cat","meanings":[]}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/v2/entries/en/", srv.Client(), nil)

	assert.True(t, client.IsWord(context.Background(), "cat"))
	assert.Equal(t, "/api/v2/entries/en/cat", gotPath)
}

func TestIsWord_EscapesSpaces(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	client.IsWord(context.Background(), "note book")

	assert.Equal(t, "/note%20book", gotPath)
}

func TestIsWord_NotFoundBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"No Definitions Found"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	assert.False(t, client.IsWord(context.Background(), "qwzx"))
}

func TestIsWord_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)
	assert.False(t, client.IsWord(context.Background(), "cat"))
}

func TestIsWord_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	reg := metrics.NewRegistry()
	m := metrics.NewDictionaryMetrics(reg)
	client := NewClient(url, &http.Client{Timeout: time.Second}, m)

	assert.False(t, client.IsWord(context.Background(), "cat"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("error")))
}

func TestIsWord_BreakerOpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := metrics.NewRegistry()
	m := metrics.NewDictionaryMetrics(reg)
	client := NewClient(srv.URL, srv.Client(), m)

	for range breakerFailureThreshold + 3 {
		assert.False(t, client.IsWord(context.Background(), "cat"))
	}

	assert.Equal(t, int32(breakerFailureThreshold), hits.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
}

func TestIsWord_ConcurrentLookupsShareRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client(), nil)

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Go(func() {
			results[i] = client.IsWord(context.Background(), "cat")
		})
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, r := range results {
		assert.True(t, r)
	}
}

func TestIsWord_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cat" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := metrics.NewRegistry()
	m := metrics.NewDictionaryMetrics(reg)
	client := NewClient(srv.URL, srv.Client(), m)

	client.IsWord(context.Background(), "cat")
	client.IsWord(context.Background(), "zzz")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("unrecognized")))
}
