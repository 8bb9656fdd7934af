package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/multiversx/mx-chain-core-go/core/check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statsResponse = `{
	"state": "running",
	"user_count": 50,
	"total_rps": 80.5,
	"fail_ratio": 0.02,
	"stats": [
		{"name": "/api/users", "avg_response_time": 10, "num_requests": 10},
		{
			"name": "Aggregated",
			"avg_response_time": 55.5,
			"median_response_time": 40,
			"response_time_percentile_0.95": 120,
			"response_time_percentile_0.99": 300,
			"num_requests": 1000,
			"num_failures": 20
		}
	]
}`

func createAdapter(t *testing.T, handler http.Handler) *locustAdapter {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	host, portString, err := net.SplitHostPort(server.Listener.Addr().String())
	require.Nil(t, err)
	port, err := strconv.Atoi(portString)
	require.Nil(t, err)

	return NewLocustAdapter(ArgsLocustAdapter{
		Host:           host,
		Port:           port,
		External:       true,
		RequestTimeout: time.Second,
	})
}

func TestNewLocustAdapter(t *testing.T) {
	t.Parallel()

	la := NewLocustAdapter(ArgsLocustAdapter{Port: 8089})
	assert.False(t, check.IfNil(la))
	assert.Equal(t, "http://127.0.0.1:8089", la.BaseURL())
	assert.Equal(t, defaultCommand, la.args.Command)
	assert.Equal(t, defaultRequestTimeout, la.client.Timeout)

	la = NewLocustAdapter(ArgsLocustAdapter{Host: "10.0.0.1", Port: 9000})
	assert.Equal(t, "http://10.0.0.1:9000", la.BaseURL())
	assert.Equal(t, []string{TypeLocust}, Types())
}

func TestLocustAdapter_IsReady(t *testing.T) {
	t.Parallel()

	t.Run("200 on root should be ready", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		assert.True(t, la.IsReady(context.Background()))
	})
	t.Run("error status should not be ready", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		assert.False(t, la.IsReady(context.Background()))
	})
	t.Run("connection refused should not be ready", func(t *testing.T) {
		la := NewLocustAdapter(ArgsLocustAdapter{Host: "127.0.0.1", Port: 1, RequestTimeout: time.Second})
		assert.False(t, la.IsReady(context.Background()))
	})
}

func TestLocustAdapter_Configure(t *testing.T) {
	t.Parallel()

	t.Run("should post the swarm form", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/swarm", r.URL.Path)
			require.Nil(t, r.ParseForm())
			assert.Equal(t, "25", r.PostForm.Get("user_count"))
			assert.Equal(t, "2.5", r.PostForm.Get("spawn_rate"))
			_, _ = w.Write([]byte(`{"success": true, "message": "Swarming started"}`))
		}))

		assert.Nil(t, la.Configure(context.Background(), 25, 2.5))
	})
	t.Run("rejected swarm should error", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "message": "no test file"}`))
		}))

		err := la.Configure(context.Background(), 25, 1)
		assert.True(t, errors.Is(err, ErrSwarmRejected))
		assert.Contains(t, err.Error(), "no test file")
	})
	t.Run("non-2xx should error", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))

		err := la.Configure(context.Background(), 25, 1)
		assert.True(t, errors.Is(err, errStatusNotOK(http.StatusBadRequest)))
	})
}

func TestLocustAdapter_GetStats(t *testing.T) {
	t.Parallel()

	t.Run("should parse the aggregated entry", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/stats/requests", r.URL.Path)
			_, _ = w.Write([]byte(statsResponse))
		}))

		before := time.Now()
		raw, err := la.GetStats(context.Background())
		require.Nil(t, err)

		assert.Equal(t, 50, raw.Users)
		assert.Equal(t, 80.5, raw.RPS)
		assert.Equal(t, 55.5, raw.RtAvg)
		assert.Equal(t, 40.0, raw.P50)
		assert.Equal(t, 120.0, raw.P95)
		assert.Equal(t, 300.0, raw.P99)
		assert.Equal(t, int64(20), raw.FailedRequests)
		assert.Equal(t, int64(1000), raw.TotalRequests)
		assert.InDelta(t, 2.0, raw.ErrorRate, 1e-9)
		assert.False(t, raw.Timestamp.Before(before))
	})
	t.Run("missing aggregated entry should error", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"user_count": 1, "stats": []}`))
		}))

		_, err := la.GetStats(context.Background())
		assert.True(t, errors.Is(err, errPathNotFound(aggregatedPath)))
	})
	t.Run("server error should error", func(t *testing.T) {
		la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := la.GetStats(context.Background())
		assert.ErrorContains(t, err, "failed to fetch stats")
	})
}

func TestLocustAdapter_Stop(t *testing.T) {
	t.Parallel()

	numCalls := uint32(0)
	la := createAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stop", r.URL.Path)
		atomic.AddUint32(&numCalls, 1)
	}))

	assert.Nil(t, la.Stop(context.Background()))
	assert.Equal(t, uint32(1), atomic.LoadUint32(&numCalls))
}

func TestLocustAdapter_LaunchAndShutdown(t *testing.T) {
	t.Parallel()

	t.Run("shutdown without launch is idempotent", func(t *testing.T) {
		la := NewLocustAdapter(ArgsLocustAdapter{Port: 8089})
		assert.Nil(t, la.Shutdown())
		assert.Nil(t, la.Shutdown())
		assert.Equal(t, ErrAdapterClosed, la.Launch(context.Background()))
	})
	t.Run("external generator is not spawned", func(t *testing.T) {
		la := NewLocustAdapter(ArgsLocustAdapter{Port: 8089, External: true, Command: "command-that-does-not-exist"})
		assert.Nil(t, la.Launch(context.Background()))
		assert.Nil(t, la.cmd)
		assert.Nil(t, la.Shutdown())
	})
	t.Run("missing binary should error", func(t *testing.T) {
		la := NewLocustAdapter(ArgsLocustAdapter{Port: 8089, Command: "command-that-does-not-exist --headless"})
		err := la.Launch(context.Background())
		assert.ErrorContains(t, err, "failed to start command-that-does-not-exist")
		assert.Nil(t, la.Shutdown())
	})
	t.Run("launched process should be reaped on shutdown", func(t *testing.T) {
		binary := "/bin/true"
		if _, err := os.Stat(binary); err != nil {
			t.Skip("no /bin/true on this system")
		}

		testFile := filepath.Join(t.TempDir(), "locustfile.py")
		require.Nil(t, os.WriteFile(testFile, []byte(""), 0644))

		la := NewLocustAdapter(ArgsLocustAdapter{TestFile: testFile, Port: 8089, Command: binary})
		require.Nil(t, la.Launch(context.Background()))
		require.NotNil(t, la.cmd)
		assert.Nil(t, la.Launch(context.Background()), "second launch is a no-op")

		assert.Nil(t, la.Shutdown())
		assert.Nil(t, la.Shutdown())
		select {
		case <-la.exited:
		default:
			assert.Fail(t, "process was not reaped")
		}
	})
}

func TestProcessLogWriter(t *testing.T) {
	t.Parallel()

	w := &processLogWriter{}
	n, err := w.Write([]byte("first line\nsecond"))
	assert.Nil(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, "second", w.buff.String())

	_, _ = w.Write([]byte(" part\r\n"))
	assert.Equal(t, 0, w.buff.Len())
}
