package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
)

// TypeLocust is the adapter type for the Locust load generator
const TypeLocust = "locust"

const (
	defaultCommand        = "locust"
	defaultRequestTimeout = 10 * time.Second
	shutdownGracePeriod   = 10 * time.Second
	aggregatedPath        = `stats.#(name=="Aggregated")`
)

var log = logger.GetOrCreate("adapter")

// Types returns the supported adapter types
func Types() []string {
	return []string{TypeLocust}
}

// ArgsLocustAdapter is the DTO used to create a new Locust adapter
type ArgsLocustAdapter struct {
	TestFile       string
	Host           string
	Port           int
	External       bool
	Command        string
	RequestTimeout time.Duration
}

// locustAdapter drives a Locust master through its web control plane
type locustAdapter struct {
	args    ArgsLocustAdapter
	baseURL string
	client  *http.Client

	mutProcess sync.Mutex
	cmd        *exec.Cmd
	exited     chan struct{}
	closed     bool
}

// NewLocustAdapter creates a new Locust adapter. The process is not started until Launch is called.
func NewLocustAdapter(args ArgsLocustAdapter) *locustAdapter {
	if args.RequestTimeout <= 0 {
		args.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(args.Command) == "" {
		args.Command = defaultCommand
	}

	return &locustAdapter{
		args:    args,
		baseURL: "http://" + net.JoinHostPort(controlHost(args.Host), strconv.Itoa(args.Port)),
		client: &http.Client{
			Timeout: args.RequestTimeout,
		},
	}
}

// controlHost maps a wildcard bind address to the loopback address the control plane is reachable on
func controlHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	default:
		return host
	}
}

// BaseURL returns the control plane address
func (la *locustAdapter) BaseURL() string {
	return la.baseURL
}

// Launch starts the Locust process in the background. External generators are only attached to.
func (la *locustAdapter) Launch(_ context.Context) error {
	if la.args.External {
		log.Info("attaching to an external load generator", "url", la.baseURL)
		return nil
	}

	la.mutProcess.Lock()
	defer la.mutProcess.Unlock()

	if la.closed {
		return ErrAdapterClosed
	}
	if la.cmd != nil {
		return nil
	}

	tokens := strings.Fields(la.args.Command)
	if len(tokens) == 0 {
		return ErrEmptyCommand
	}
	cmdArgs := append(tokens[1:],
		"-f", la.args.TestFile,
		"--web-host", la.args.Host,
		"--web-port", strconv.Itoa(la.args.Port),
	)

	cmd := exec.Command(tokens[0], cmdArgs...)
	cmd.Stdout = &processLogWriter{}
	cmd.Stderr = &processLogWriter{}

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", tokens[0], err)
	}

	exited := make(chan struct{})
	la.cmd = cmd
	la.exited = exited
	go func() {
		errWait := cmd.Wait()
		log.Debug("load generator process exited", "pid", cmd.Process.Pid, "error", errWait)
		close(exited)
	}()

	log.Info("load generator launched", "command", la.args.Command, "pid", cmd.Process.Pid, "url", la.baseURL)

	return nil
}

// IsReady returns true when the control plane answers with 200 on its root
func (la *locustAdapter) IsReady(ctx context.Context) bool {
	_, err := la.doRequest(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		log.Trace("load generator not ready", "error", err)
		return false
	}

	return true
}

// Configure (re)applies the user count and the spawn rate
func (la *locustAdapter) Configure(ctx context.Context, users int, spawnRate float64) error {
	form := url.Values{}
	form.Set("user_count", strconv.Itoa(users))
	form.Set("spawn_rate", strconv.FormatFloat(spawnRate, 'f', -1, 64))

	body, err := la.doRequest(ctx, http.MethodPost, "/swarm", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return fmt.Errorf("failed to configure %d users: %w", users, err)
	}

	success := gjson.GetBytes(body, "success")
	if success.Exists() && !success.Bool() {
		return fmt.Errorf("%w: %s", ErrSwarmRejected, gjson.GetBytes(body, "message").String())
	}

	log.Debug("load configured", "users", users, "spawn rate", spawnRate)

	return nil
}

// GetStats fetches the current aggregate snapshot
func (la *locustAdapter) GetStats(ctx context.Context) (common.RawMetrics, error) {
	body, err := la.doRequest(ctx, http.MethodGet, "/stats/requests", nil, "")
	if err != nil {
		return common.RawMetrics{}, fmt.Errorf("failed to fetch stats: %w", err)
	}

	return parseStats(body, time.Now())
}

func parseStats(body []byte, timestamp time.Time) (common.RawMetrics, error) {
	aggregated := gjson.GetBytes(body, aggregatedPath)
	if !aggregated.Exists() {
		return common.RawMetrics{}, errPathNotFound(aggregatedPath)
	}

	root := gjson.ParseBytes(body)

	return common.RawMetrics{
		Timestamp:      timestamp,
		Users:          int(root.Get("user_count").Int()),
		RPS:            root.Get("total_rps").Float(),
		RtAvg:          aggregated.Get("avg_response_time").Float(),
		P50:            aggregated.Get("median_response_time").Float(),
		P95:            aggregated.Get(`response_time_percentile_0\.95`).Float(),
		P99:            aggregated.Get(`response_time_percentile_0\.99`).Float(),
		FailedRequests: aggregated.Get("num_failures").Int(),
		ErrorRate:      root.Get("fail_ratio").Float() * 100,
		TotalRequests:  aggregated.Get("num_requests").Int(),
	}, nil
}

// Stop halts the traffic while keeping the control plane alive
func (la *locustAdapter) Stop(ctx context.Context) error {
	_, err := la.doRequest(ctx, http.MethodGet, "/stop", nil, "")
	if err != nil {
		return fmt.Errorf("failed to stop the load: %w", err)
	}

	return nil
}

// Shutdown terminates the launched process. It is idempotent and safe to call without Launch.
func (la *locustAdapter) Shutdown() error {
	la.mutProcess.Lock()
	defer la.mutProcess.Unlock()

	if la.closed {
		return nil
	}
	la.closed = true
	la.client.CloseIdleConnections()

	if la.cmd == nil {
		return nil
	}

	err := la.cmd.Process.Signal(syscall.SIGTERM)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("failed to signal the load generator", "error", err)
	}

	select {
	case <-la.exited:
		return nil
	case <-time.After(shutdownGracePeriod):
		log.Warn("load generator did not exit in time, killing it", "pid", la.cmd.Process.Pid)
		err = la.cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill the load generator: %w", err)
		}
		<-la.exited
		return nil
	}
}

func (la *locustAdapter) doRequest(ctx context.Context, method string, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, la.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := la.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errStatusNotOK(resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// IsInterfaceNil returns true if the value under the interface is nil
func (la *locustAdapter) IsInterfaceNil() bool {
	return la == nil
}

// processLogWriter forwards the load generator output to the logger, line by line
type processLogWriter struct {
	buff bytes.Buffer
}

// Write logs every complete line and keeps the incomplete tail
func (w *processLogWriter) Write(p []byte) (int, error) {
	w.buff.Write(p)
	for {
		idx := bytes.IndexByte(w.buff.Bytes(), '\n')
		if idx < 0 {
			break
		}

		line := string(bytes.TrimRight(w.buff.Next(idx+1), "\r\n"))
		if line != "" {
			log.Trace("locust", "line", line)
		}
	}

	return len(p), nil
}
