package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/adapter"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/factory"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/strategy"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/testsCommon"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/stretchr/testify/require"
)

var log = logger.GetOrCreate("e2e-test")

const (
	degradationSample = 15
	expectedSteps     = 17
	lastStableStep    = 14
)

// newDegradingGenerator serves healthy aggregates with a small p95 jitter, then a p95 jump
// starting with the 15th sample
func newDegradingGenerator() *testsCommon.LocustServerStub {
	locust := testsCommon.NewLocustServerStub()
	locust.SampleHandler = func(index int, users int) testsCommon.LocustSample {
		sample := testsCommon.LocustSample{
			RPS:   float64(users) * 10,
			RtAvg: 60,
			P50:   50,
			P95:   99 + float64(index%3),
			P99:   120,
		}
		if index >= degradationSample {
			sample.P95 = 400
		}

		return sample
	}

	return locust
}

func createConfig(t *testing.T, locust *testsCommon.LocustServerStub) config.Config {
	testFile := filepath.Join(t.TempDir(), "locustfile.py")
	require.NoError(t, os.WriteFile(testFile, []byte("# e2e scenario"), 0644))

	return config.Config{
		Adapter: config.AdapterConfig{
			Type:     adapter.TypeLocust,
			TestFile: testFile,
			Host:     locust.Host(),
			Port:     locust.Port(),
			External: true,
		},
		Strategy: config.StrategyConfig{
			Type:              string(strategy.KindDegradationSearch),
			Mode:              strategy.ModeBaseline,
			WaitTimeInSeconds: 0.001,
			BaselineWindow:    10,
			CheckWindow:       3,
			Multiplier:        1.5,
		},
		Orchestrator: config.OrchestratorConfig{
			MonitoringIntervalInSeconds: 0.01,
			StabilizationTimeInSeconds:  0.001,
			TickIntervalInSeconds:       0.002,
			ReadyTimeoutInSeconds:       1,
			RequestTimeoutInSeconds:     1,
		},
		Web: config.WebConfig{
			ListenAddress:               "127.0.0.1:0",
			StatusPushIntervalInSeconds: 0.05,
			SQLitePath:                  filepath.Join(t.TempDir(), "runs.db"),
		},
	}
}

func requireDegradationResult(t *testing.T, result *common.TestResult) {
	require.Equal(t, common.ReasonDegradation, result.StopReason)
	require.Len(t, result.History, expectedSteps)
	require.Equal(t, common.Stop, result.History[expectedSteps-1].Verdict.Decision)
	require.Equal(t, result.History[lastStableStep-1].Metrics.Raw.Users, result.MaxStableUsers)
	require.Equal(t, float64(result.MaxStableUsers*10), result.MaxStableRPS)
}

func getJSON(t *testing.T, url string, out interface{}) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.Unmarshal(body, out))
	}

	return resp.StatusCode
}

func TestE2E_SingleRun(t *testing.T) {
	log.Info("======== 1. Start a fake load generator that degrades at sample 15")
	locust := newDegradingGenerator()
	defer locust.Close()

	log.Info("======== 2. Create the components and run the degradation search once")
	handler, err := factory.NewComponentsHandler(factory.ArgsComponentsHandler{Config: createConfig(t, locust)})
	require.NoError(t, err)
	defer handler.Close()

	result, err := handler.Run(context.Background())
	require.NoError(t, err)

	log.Info("======== 3. Verify the stop step and the max stable load")
	requireDegradationResult(t, result)
	require.Equal(t, 1, locust.NumStops())

	log.Info("======== 4. Verify the run was persisted")
	runs, err := handler.GetStore().ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, expectedSteps, runs[0].NumSteps)
	require.Equal(t, result.MaxStableUsers, runs[0].MaxStableUsers)

	samples, err := handler.GetStore().GetSamples(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, samples, expectedSteps)
	require.Equal(t, result.History[lastStableStep-1].Users, samples[lastStableStep-1].Users)
}

func TestE2E_WebFlow(t *testing.T) {
	log.Info("======== 1. Start a fake load generator that degrades at sample 15")
	locust := newDegradingGenerator()
	defer locust.Close()

	log.Info("======== 2. Start the management surface")
	handler, err := factory.NewComponentsHandler(factory.ArgsComponentsHandler{Config: createConfig(t, locust)})
	require.NoError(t, err)
	defer handler.Close()

	require.NoError(t, handler.StartWebServer())
	_, port, err := net.SplitHostPort(handler.GetServer().Address())
	require.NoError(t, err)
	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)

	log.Info("======== 3. Subscribe to the live events")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/metrics"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	log.Info("======== 4. Start the run through the REST API")
	resp, err := http.Post(baseURL+"/api/start", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	log.Info("======== 5. Wait for the decision and result events")
	numDecisions := 0
	gotResult := false
	for !gotResult {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, errRead := conn.ReadMessage()
		require.NoError(t, errRead)

		event := struct {
			Type string `json:"type"`
		}{}
		require.NoError(t, json.Unmarshal(data, &event))
		switch event.Type {
		case "decision":
			numDecisions++
		case "result":
			gotResult = true
		}
	}
	require.Equal(t, expectedSteps, numDecisions)

	log.Info("======== 6. Fetch the result")
	result := &common.TestResult{}
	require.Eventually(t, func() bool {
		return getJSON(t, baseURL+"/api/result", result) == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)
	requireDegradationResult(t, result)

	status := common.RunStatus{}
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/api/status", &status))
	require.Equal(t, common.StateFinished, status.State)
	require.Equal(t, expectedSteps, status.Steps)

	log.Info("======== 7. Fetch the persisted runs and their samples")
	runs := struct {
		Runs []common.RunSummary `json:"runs"`
	}{}
	require.Equal(t, http.StatusOK, getJSON(t, baseURL+"/api/runs", &runs))
	require.Len(t, runs.Runs, 1)
	require.Equal(t, common.ReasonDegradation, runs.Runs[0].StopReason)

	samples := struct {
		Samples []common.Step `json:"samples"`
	}{}
	url := fmt.Sprintf("%s/api/runs/%d/samples", baseURL, runs.Runs[0].ID)
	require.Equal(t, http.StatusOK, getJSON(t, url, &samples))
	require.Len(t, samples.Samples, expectedSteps)

	log.Info("======== 8. Check the prometheus exposition")
	resp, err = http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `load_orchestrator_runs_total{reason="DEGRADATION"} 1`)
	require.Contains(t, string(body), `load_orchestrator_decisions_total{decision="STOP"} 1`)

	log.Info("======== 9. A stop without an active run is rejected")
	require.Eventually(t, func() bool {
		respStop, errPost := http.Post(baseURL+"/api/stop", "application/json", nil)
		require.NoError(t, errPost)
		_ = respStop.Body.Close()

		return respStop.StatusCode == http.StatusConflict
	}, 5*time.Second, 10*time.Millisecond)
}
