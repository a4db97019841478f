package keepalive

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestProbeStatus(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := &Prober{Client: srv.Client(), Url: srv.URL + "/health"}

	assert.NoError(t, p.Probe(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	assert.ErrorContains(t, p.Probe(context.Background()), "unexpected status")
}

func TestProbeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Prober{Client: http.DefaultClient, Url: url}
	assert.Error(t, p.Probe(context.Background()))
}

func TestOverlappingFiringsAreSkipped(t *testing.T) {
	var hits atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(entered)
		}
		<-release
	}))
	defer srv.Close()

	s := NewScheduler(&Prober{Client: srv.Client(), Url: srv.URL}, time.Hour, 5*time.Second, discard)

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()

	<-entered
	// returns immediately, previous probe still running
	s.job.Run()
	close(release)
	<-done

	assert.EqualValues(t, 1, hits.Load())

	// the slot is free again
	s.job.Run()
	assert.EqualValues(t, 2, hits.Load())
}

func TestFailedProbeIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewScheduler(&Prober{Client: srv.Client(), Url: srv.URL}, time.Hour, time.Second, discard)
	assert.NotPanics(t, s.job.Run)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&Prober{Client: http.DefaultClient, Url: "http://127.0.0.1:1"}, time.Hour, time.Second, discard)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
