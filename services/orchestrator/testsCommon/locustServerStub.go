package testsCommon

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// LocustSample is one scripted aggregate served by the LocustServerStub
type LocustSample struct {
	RPS       float64
	RtAvg     float64
	P50       float64
	P95       float64
	P99       float64
	FailRatio float64
}

// LocustServerStub is an in-process fake of the Locust web control plane
type LocustServerStub struct {
	*httptest.Server
	SampleHandler func(index int, users int) LocustSample

	mut        sync.Mutex
	users      int
	numStats   int
	numStops   int
	configured []int
}

// NewLocustServerStub starts a new fake control plane
func NewLocustServerStub() *LocustServerStub {
	stub := &LocustServerStub{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("locust"))
	})
	mux.HandleFunc("/swarm", stub.handleSwarm)
	mux.HandleFunc("/stats/requests", stub.handleStats)
	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		stub.mut.Lock()
		stub.numStops++
		stub.mut.Unlock()

		_, _ = w.Write([]byte(`{"success": true}`))
	})
	stub.Server = httptest.NewServer(mux)

	return stub
}

func (stub *LocustServerStub) handleSwarm(w http.ResponseWriter, r *http.Request) {
	users, err := strconv.Atoi(r.FormValue("user_count"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	stub.mut.Lock()
	stub.users = users
	stub.configured = append(stub.configured, users)
	stub.mut.Unlock()

	_, _ = w.Write([]byte(`{"success": true, "message": "Swarming started"}`))
}

func (stub *LocustServerStub) handleStats(w http.ResponseWriter, _ *http.Request) {
	stub.mut.Lock()
	stub.numStats++
	index, users := stub.numStats, stub.users
	stub.mut.Unlock()

	sample := LocustSample{
		RPS:   float64(users) * 10,
		RtAvg: 60,
		P50:   50,
		P95:   100,
		P99:   150,
	}
	if stub.SampleHandler != nil {
		sample = stub.SampleHandler(index, users)
	}

	aggregated := map[string]interface{}{
		"name":                          "Aggregated",
		"avg_response_time":             sample.RtAvg,
		"median_response_time":          sample.P50,
		"response_time_percentile_0.95": sample.P95,
		"response_time_percentile_0.99": sample.P99,
		"num_requests":                  index * 100,
		"num_failures":                  int(sample.FailRatio * float64(index*100)),
	}
	response := map[string]interface{}{
		"user_count": users,
		"total_rps":  sample.RPS,
		"fail_ratio": sample.FailRatio,
		"stats":      []interface{}{aggregated},
	}

	buff, _ := json.Marshal(response)
	_, _ = w.Write(buff)
}

// Host returns the host the fake control plane listens on
func (stub *LocustServerStub) Host() string {
	return stub.Listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the fake control plane listens on
func (stub *LocustServerStub) Port() int {
	return stub.Listener.Addr().(*net.TCPAddr).Port
}

// Configured returns all the user counts received on /swarm
func (stub *LocustServerStub) Configured() []int {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return append(make([]int, 0, len(stub.configured)), stub.configured...)
}

// NumStops returns how many times /stop was called
func (stub *LocustServerStub) NumStops() int {
	stub.mut.Lock()
	defer stub.mut.Unlock()

	return stub.numStops
}
