package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/samber/lo"
)

var log = logger.GetOrCreate("engine")

const (
	criticalErrorRate        = 50.0
	defaultReadyPollInterval = time.Second
	defaultReadyTimeout      = 120 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultStatsRetries      = 3
	defaultStatsRetryDelay   = 500 * time.Millisecond
)

// ArgsOrchestrator is the DTO used to create a new orchestrator.
// Recorder and Notifier are optional.
type ArgsOrchestrator struct {
	Adapter            Adapter
	Strategy           Strategy
	Analyzer           Analyzer
	Recorder           RunRecorder
	Notifier           Notifier
	MonitoringInterval time.Duration
	StabilizationTime  time.Duration
	TickInterval       time.Duration
	ReadyPollInterval  time.Duration
	ReadyTimeout       time.Duration
	RequestTimeout     time.Duration
	MaxUsers           int
	SpawnRate          float64
	StatsRetries       uint
	StatsRetryDelay    time.Duration
}

// orchestrator runs the INIT -> RUNNING -> FINISHED state machine of one load test.
// A single goroutine drives the adapter, the accessors are safe to call concurrently.
type orchestrator struct {
	adapter            Adapter
	strategy           Strategy
	analyzer           Analyzer
	recorder           RunRecorder
	notifier           Notifier
	monitoringInterval time.Duration
	stabilizationTime  time.Duration
	tickInterval       time.Duration
	readyPollInterval  time.Duration
	readyTimeout       time.Duration
	requestTimeout     time.Duration
	maxUsers           int
	spawnRate          float64
	statsRetries       uint
	statsRetryDelay    time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	runID    int64

	mut          sync.RWMutex
	state        common.State
	currentUsers int
	startedAt    time.Time
	history      []common.Step
	stopReason   common.StopReason
	result       *common.TestResult
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(args ArgsOrchestrator) (*orchestrator, error) {
	err := checkArgs(args)
	if err != nil {
		return nil, err
	}

	o := &orchestrator{
		adapter:            args.Adapter,
		strategy:           args.Strategy,
		analyzer:           args.Analyzer,
		recorder:           args.Recorder,
		notifier:           args.Notifier,
		monitoringInterval: args.MonitoringInterval,
		stabilizationTime:  args.StabilizationTime,
		tickInterval:       args.TickInterval,
		readyPollInterval:  durationOrDefault(args.ReadyPollInterval, defaultReadyPollInterval),
		readyTimeout:       durationOrDefault(args.ReadyTimeout, defaultReadyTimeout),
		requestTimeout:     durationOrDefault(args.RequestTimeout, defaultRequestTimeout),
		maxUsers:           args.MaxUsers,
		spawnRate:          args.SpawnRate,
		statsRetries:       args.StatsRetries,
		statsRetryDelay:    durationOrDefault(args.StatsRetryDelay, defaultStatsRetryDelay),
		stopChan:           make(chan struct{}),
		state:              common.StateInit,
	}
	if o.statsRetries == 0 {
		o.statsRetries = defaultStatsRetries
	}
	if check.IfNil(o.recorder) {
		o.recorder = &disabledRecorder{}
	}
	if check.IfNil(o.notifier) {
		o.notifier = &disabledNotifier{}
	}

	return o, nil
}

func checkArgs(args ArgsOrchestrator) error {
	if check.IfNil(args.Adapter) {
		return ErrNilAdapter
	}
	if check.IfNil(args.Strategy) {
		return ErrNilStrategy
	}
	if check.IfNil(args.Analyzer) {
		return ErrNilAnalyzer
	}
	if args.MonitoringInterval <= 0 {
		return fmt.Errorf("%w: monitoring interval %v", ErrInvalidInterval, args.MonitoringInterval)
	}
	if args.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %v", ErrInvalidInterval, args.TickInterval)
	}
	if args.StabilizationTime < 0 {
		return fmt.Errorf("%w: stabilization time %v", ErrInvalidInterval, args.StabilizationTime)
	}

	return nil
}

func durationOrDefault(value time.Duration, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}

	return value
}

// Run executes the load test and blocks until it finishes. The returned result is never nil
// unless the orchestrator was already started. Cancelling the context is handled as a manual stop.
func (o *orchestrator) Run(ctx context.Context) (*common.TestResult, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	startedAt := time.Now()
	o.mut.Lock()
	o.startedAt = startedAt
	o.mut.Unlock()

	runID, err := o.recorder.BeginRun(o.strategy.Name(), startedAt)
	if err != nil {
		log.Warn("failed to record the run start, the run will not be persisted", "error", err)
		o.recorder = &disabledRecorder{}
	}
	o.runID = runID

	log.Info("load test starting", "strategy", o.strategy.Name(), "max users", o.maxUsers)
	o.notifyStatus()

	reason, message := o.execute(ctx)

	return o.finalize(reason, message), nil
}

func (o *orchestrator) execute(ctx context.Context) (reason common.StopReason, message string) {
	defer func() {
		r := recover()
		if r != nil {
			log.Error("orchestrator loop panicked", "panic", r, "stack", string(debug.Stack()))
			reason = common.ReasonError
			message = fmt.Sprintf("unexpected failure: %v", r)
		}
	}()

	reason, message = o.initialize(ctx)
	if reason != common.ReasonNone {
		return reason, message
	}

	return o.loop(ctx)
}

func (o *orchestrator) initialize(ctx context.Context) (common.StopReason, string) {
	err := o.adapter.Launch(ctx)
	if err != nil {
		return common.ReasonError, fmt.Sprintf("failed to launch the load generator: %v", err)
	}

	reason, message := o.waitReady(ctx)
	if reason != common.ReasonNone {
		return reason, message
	}

	if o.stopRequested() || ctx.Err() != nil {
		return o.interruptReason(ctx)
	}

	initialUsers := o.strategy.NextUsers(0, common.AnalyzedMetrics{})
	initialUsers = o.capUsers(initialUsers)
	err = o.configure(ctx, initialUsers, float64(initialUsers))
	if err != nil {
		return common.ReasonError, fmt.Sprintf("failed to apply the initial load: %v", err)
	}

	log.Debug("initial load applied, stabilizing", "users", initialUsers, "duration", o.stabilizationTime)
	if !o.sleep(ctx, o.stabilizationTime) {
		return o.interruptReason(ctx)
	}

	o.setState(common.StateRunning)

	return common.ReasonNone, ""
}

func (o *orchestrator) waitReady(ctx context.Context) (common.StopReason, string) {
	deadline := time.Now().Add(o.readyTimeout)
	for {
		reqCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		ready := o.adapter.IsReady(reqCtx)
		cancel()
		if ready {
			log.Debug("load generator is ready")
			return common.ReasonNone, ""
		}

		if !time.Now().Before(deadline) {
			return common.ReasonTimeout, fmt.Sprintf("load generator not ready after %v", o.readyTimeout)
		}
		if !o.sleep(ctx, o.readyPollInterval) {
			return o.interruptReason(ctx)
		}
	}
}

func (o *orchestrator) loop(ctx context.Context) (common.StopReason, string) {
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	now := time.Now()
	nextMonitor := now.Add(o.monitoringInterval)
	// zero value: the first CONTINUE applies a change without waiting
	var lastChange time.Time

	for {
		select {
		case <-ctx.Done():
			return o.interruptReason(ctx)
		case <-o.stopChan:
			return o.interruptReason(ctx)
		case <-ticker.C:
		}
		if o.stopRequested() {
			return o.interruptReason(ctx)
		}

		now = time.Now()
		if now.Before(nextMonitor) {
			continue
		}
		nextMonitor = nextMonitor.Add(o.monitoringInterval)
		if !nextMonitor.After(now) {
			nextMonitor = now.Add(o.monitoringInterval)
		}

		changeDue := now.Sub(lastChange) >= o.strategy.WaitTime()
		verdict, changed := o.monitor(ctx, changeDue)
		if changed {
			lastChange = time.Now()
		}
		if verdict.Decision == common.Stop {
			return verdict.Reason, verdict.Message
		}
	}
}

// monitor fetches and analyzes one sample, applies the guards and the strategy and changes the load when allowed
func (o *orchestrator) monitor(ctx context.Context, changeDue bool) (common.Verdict, bool) {
	raw, err := o.fetchStats(ctx)
	if err != nil {
		if ctx.Err() != nil {
			reason, message := o.interruptReason(ctx)
			return common.Verdict{Decision: common.Stop, Reason: reason, Message: message}, false
		}

		return common.Verdict{
			Decision: common.Stop,
			Reason:   common.ReasonError,
			Message:  fmt.Sprintf("failed to fetch stats after %d attempts: %v", o.statsRetries, err),
		}, false
	}

	metrics := o.analyzer.Analyze(raw)
	o.notifier.Notify(newEvent(common.EventMetrics, metrics))

	verdict, guarded := o.checkGuards(metrics)
	if !guarded {
		verdict = o.strategy.Decide(metrics)
	}

	currentUsers := o.CurrentUsers()
	nextUsers := currentUsers
	changed := false
	if verdict.Decision == common.Continue && changeDue {
		nextUsers = o.capUsers(o.strategy.NextUsers(currentUsers, metrics))
		if nextUsers != currentUsers {
			err = o.configure(ctx, nextUsers, o.spawnRate)
			if err != nil {
				verdict = common.Verdict{
					Decision:  common.Stop,
					Reason:    common.ReasonError,
					Violation: verdict.Violation,
					Message:   fmt.Sprintf("failed to apply %d users: %v", nextUsers, err),
				}
				nextUsers = currentUsers
			} else {
				changed = true
			}
		}
	}

	step := o.appendStep(metrics, verdict, nextUsers)
	o.logStep(step, guarded)

	err = o.recorder.RecordStep(o.runID, step)
	if err != nil {
		log.Warn("failed to record step", "step", step.Index, "error", err)
	}
	o.notifier.Notify(newEvent(common.EventDecision, step))
	if changed {
		o.notifyStatus()
	}

	return verdict, changed
}

// checkGuards evaluates the critical conditions that pre-empt the strategy
func (o *orchestrator) checkGuards(metrics common.AnalyzedMetrics) (common.Verdict, bool) {
	raw := metrics.Raw
	if raw.ErrorRate >= criticalErrorRate {
		return common.Verdict{
			Decision:  common.Stop,
			Reason:    common.ReasonDegradation,
			Violation: true,
			Message:   fmt.Sprintf("critical error rate %.2f%%", raw.ErrorRate),
		}, true
	}
	if raw.RPS == 0 && raw.Users > 0 {
		return common.Verdict{
			Decision:  common.Stop,
			Reason:    common.ReasonDegradation,
			Violation: true,
			Message:   fmt.Sprintf("no throughput with %d active users", raw.Users),
		}, true
	}
	if o.maxUsers > 0 && raw.Users >= o.maxUsers {
		return common.Verdict{
			Decision: common.Stop,
			Reason:   common.ReasonDegradation,
			Message:  fmt.Sprintf("reached the %d users limit", o.maxUsers),
		}, true
	}

	return common.Verdict{}, false
}

func (o *orchestrator) fetchStats(ctx context.Context) (common.RawMetrics, error) {
	var raw common.RawMetrics
	err := retry.Do(
		func() error {
			reqCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
			defer cancel()

			var errGet error
			raw, errGet = o.adapter.GetStats(reqCtx)
			return errGet
		},
		retry.Attempts(o.statsRetries),
		retry.Delay(o.statsRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("stats fetch failed", "attempt", n+1, "max attempts", o.statsRetries, "error", err)
		}),
	)

	return raw, err
}

func (o *orchestrator) configure(ctx context.Context, users int, spawnRate float64) error {
	reqCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	err := o.adapter.Configure(reqCtx, users, spawnRate)
	if err != nil {
		return err
	}

	o.mut.Lock()
	o.currentUsers = users
	o.mut.Unlock()

	return nil
}

func (o *orchestrator) capUsers(users int) int {
	if o.maxUsers > 0 && users > o.maxUsers {
		return o.maxUsers
	}

	return users
}

func (o *orchestrator) appendStep(metrics common.AnalyzedMetrics, verdict common.Verdict, users int) common.Step {
	o.mut.Lock()
	defer o.mut.Unlock()

	step := common.Step{
		Index:   len(o.history) + 1,
		Metrics: metrics,
		Verdict: verdict,
		Users:   users,
	}
	o.history = append(o.history, step)

	return step
}

func (o *orchestrator) logStep(step common.Step, guarded bool) {
	raw := step.Metrics.Raw
	log.Info("monitoring tick",
		"step", step.Index,
		"users", raw.Users,
		"rps", raw.RPS,
		"p50", raw.P50,
		"p95", raw.P95,
		"p99", raw.P99,
		"error rate", raw.ErrorRate,
		"stability", step.Metrics.StabilityValue(),
		"efficiency", step.Metrics.ScalingEfficiency,
		"degradation index", step.Metrics.DegradationIndex,
		"decision", step.Verdict.Decision.String(),
		"guard", guarded,
		"next users", step.Users,
	)
}

// sleep waits for the duration and returns false when interrupted
func (o *orchestrator) sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-o.stopChan:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-o.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

func (o *orchestrator) interruptReason(ctx context.Context) (common.StopReason, string) {
	if ctx.Err() != nil {
		return common.ReasonManual, "run interrupted: " + ctx.Err().Error()
	}

	return common.ReasonManual, "manual stop requested"
}

func (o *orchestrator) finalize(reason common.StopReason, message string) *common.TestResult {
	stopCtx, cancel := context.WithTimeout(context.Background(), o.requestTimeout)
	defer cancel()

	err := o.adapter.Stop(stopCtx)
	if err != nil {
		log.Warn("failed to stop the load", "error", err)
	}
	err = o.adapter.Shutdown()
	if err != nil {
		log.Warn("failed to shut down the load generator", "error", err)
	}

	o.mut.Lock()
	history := make([]common.Step, len(o.history))
	copy(history, o.history)
	stable := lo.Filter(history, func(step common.Step, _ int) bool {
		return !step.Verdict.Violation
	})

	result := &common.TestResult{
		StartedAt:   o.startedAt,
		FinishedAt:  time.Now(),
		StopReason:  reason,
		StopMessage: message,
		History:     history,
	}
	result.MaxStableUsers = lo.Max(lo.Map(stable, func(step common.Step, _ int) int {
		return step.Metrics.Raw.Users
	}))
	result.MaxStableRPS = lo.Max(lo.Map(stable, func(step common.Step, _ int) float64 {
		return step.Metrics.Raw.RPS
	}))

	o.result = result
	o.stopReason = reason
	o.state = common.StateFinished
	o.mut.Unlock()

	log.Info("load test finished",
		"reason", reason.String(),
		"message", message,
		"duration", result.Duration(),
		"steps", len(history),
		"max stable users", result.MaxStableUsers,
		"max stable rps", result.MaxStableRPS)

	err = o.recorder.FinishRun(o.runID, *result)
	if err != nil {
		log.Warn("failed to record the run result", "error", err)
	}
	o.notifyStatus()
	o.notifier.Notify(newEvent(common.EventResult, result))

	return result
}

// Stop requests a manual stop, observed at the next tick boundary
func (o *orchestrator) Stop() {
	o.stopOnce.Do(func() {
		log.Info("manual stop requested")
		close(o.stopChan)
	})
}

func (o *orchestrator) stopRequested() bool {
	select {
	case <-o.stopChan:
		return true
	default:
		return false
	}
}

func (o *orchestrator) setState(state common.State) {
	o.mut.Lock()
	o.state = state
	o.mut.Unlock()

	o.notifyStatus()
}

func (o *orchestrator) notifyStatus() {
	o.notifier.Notify(newEvent(common.EventStatus, o.Status()))
}

func newEvent(eventType common.EventType, payload interface{}) common.Event {
	return common.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// State returns the current lifecycle state
func (o *orchestrator) State() common.State {
	o.mut.RLock()
	defer o.mut.RUnlock()

	return o.state
}

// CurrentUsers returns the last user count applied to the load generator
func (o *orchestrator) CurrentUsers() int {
	o.mut.RLock()
	defer o.mut.RUnlock()

	return o.currentUsers
}

// LatestStep returns the most recent step, if any
func (o *orchestrator) LatestStep() (common.Step, bool) {
	o.mut.RLock()
	defer o.mut.RUnlock()

	if len(o.history) == 0 {
		return common.Step{}, false
	}

	return o.history[len(o.history)-1], true
}

// History returns a copy of all steps so far
func (o *orchestrator) History() []common.Step {
	o.mut.RLock()
	defer o.mut.RUnlock()

	history := make([]common.Step, len(o.history))
	copy(history, o.history)

	return history
}

// Result returns the final result, nil while the run is in progress
func (o *orchestrator) Result() *common.TestResult {
	o.mut.RLock()
	defer o.mut.RUnlock()

	return o.result
}

// Status returns the current run status
func (o *orchestrator) Status() common.RunStatus {
	o.mut.RLock()
	defer o.mut.RUnlock()

	elapsed := 0.0
	switch {
	case o.result != nil:
		elapsed = o.result.Duration().Seconds()
	case !o.startedAt.IsZero():
		elapsed = time.Since(o.startedAt).Seconds()
	}

	return common.RunStatus{
		State:        o.state,
		CurrentUsers: o.currentUsers,
		Steps:        len(o.history),
		Elapsed:      elapsed,
		StopReason:   o.stopReason,
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (o *orchestrator) IsInterfaceNil() bool {
	return o == nil
}
