package factory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/adapter"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/analytics"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/api"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/engine"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/storage"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/strategy"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("factory")

// ArgsComponentsHandler is the DTO used to create the components handler
type ArgsComponentsHandler struct {
	Config config.Config
	// LocustCommand overrides the configured generator command when not empty
	LocustCommand string
}

// componentsHandler wires the run components from the configuration. A fresh adapter, strategy
// and analyzer are created for every run, only one run can be active at a time.
// The run store is opened on first use: by the web server, or by a run when the database is a file.
type componentsHandler struct {
	locustCommand string

	mutRun    sync.RWMutex
	cfg       config.Config
	store     RunStore
	server    Server
	current   Orchestrator
	running   bool
	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// NewComponentsHandler validates the configuration and creates a new components handler
func NewComponentsHandler(args ArgsComponentsHandler) (*componentsHandler, error) {
	cfg := args.Config
	cfg.ApplyDefaults()
	err := checkConfig(cfg, args.LocustCommand)
	if err != nil {
		return nil, err
	}

	return &componentsHandler{
		locustCommand: args.LocustCommand,
		cfg:           cfg,
	}, nil
}

// openStore must be called under the run mutex
func (ch *componentsHandler) openStore() (RunStore, error) {
	if !check.IfNil(ch.store) {
		return ch.store, nil
	}

	store, err := storage.NewSQLiteStorage(ch.cfg.Web.SQLitePath, ch.cfg.Web.RetainedRuns)
	if err != nil {
		return nil, err
	}
	ch.store = store
	log.Debug("run store opened", "path", ch.cfg.Web.SQLitePath)

	return store, nil
}

// runRecorder must be called under the run mutex. An in-memory store is only worth keeping while the web server
// can read it back.
func (ch *componentsHandler) runRecorder() (engine.RunRecorder, error) {
	if check.IfNil(ch.server) && check.IfNil(ch.store) && storage.IsInMemory(ch.cfg.Web.SQLitePath) {
		return nil, nil
	}

	return ch.openStore()
}

func checkConfig(cfg config.Config, locustCommand string) error {
	err := cfg.Validate()
	if err != nil {
		return err
	}

	_, err = createAdapter(cfg, locustCommand)
	if err != nil {
		return err
	}

	_, err = strategy.New(cfg.Strategy)

	return err
}

func createAdapter(cfg config.Config, locustCommand string) (engine.Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Adapter.Type)) {
	case adapter.TypeLocust:
		command := cfg.Adapter.Command
		if locustCommand != "" {
			command = locustCommand
		}

		return adapter.NewLocustAdapter(adapter.ArgsLocustAdapter{
			TestFile:       cfg.Adapter.TestFile,
			Host:           cfg.Adapter.Host,
			Port:           cfg.Adapter.Port,
			External:       cfg.Adapter.External,
			Command:        command,
			RequestTimeout: cfg.Orchestrator.RequestTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", adapter.ErrUnknownAdapter, cfg.Adapter.Type)
	}
}

// createOrchestrator must be called under the run mutex
func (ch *componentsHandler) createOrchestrator(cfg config.Config) (Orchestrator, error) {
	loadAdapter, err := createAdapter(cfg, ch.locustCommand)
	if err != nil {
		return nil, err
	}

	runStrategy, err := strategy.New(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	recorder, err := ch.runRecorder()
	if err != nil {
		return nil, err
	}

	var notifier engine.Notifier
	if !check.IfNil(ch.server) {
		notifier = ch.server
	}

	orchestratorCfg := cfg.Orchestrator
	o, err := engine.NewOrchestrator(engine.ArgsOrchestrator{
		Adapter:            loadAdapter,
		Strategy:           runStrategy,
		Analyzer:           analytics.NewAnalyzer(orchestratorCfg.WindowSize),
		Recorder:           recorder,
		Notifier:           notifier,
		MonitoringInterval: orchestratorCfg.MonitoringInterval(),
		StabilizationTime:  orchestratorCfg.StabilizationTime(),
		TickInterval:       orchestratorCfg.TickInterval(),
		ReadyTimeout:       orchestratorCfg.ReadyTimeout(),
		RequestTimeout:     orchestratorCfg.RequestTimeout(),
		MaxUsers:           orchestratorCfg.MaxUsers,
		SpawnRate:          orchestratorCfg.SpawnRate,
		StatsRetries:       orchestratorCfg.StatsRetries,
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

func (ch *componentsHandler) prepareRun(ctx context.Context) (Orchestrator, context.Context, chan struct{}, error) {
	ch.mutRun.Lock()
	defer ch.mutRun.Unlock()

	if ch.running {
		return nil, nil, nil, common.ErrRunInProgress
	}

	o, err := ch.createOrchestrator(ch.cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	ch.current = o
	ch.running = true
	ch.cancelRun = cancel
	ch.runDone = make(chan struct{})

	return o, runCtx, ch.runDone, nil
}

func (ch *componentsHandler) finishRun(done chan struct{}) {
	ch.mutRun.Lock()
	ch.running = false
	cancel := ch.cancelRun
	ch.cancelRun = nil
	ch.mutRun.Unlock()

	if cancel != nil {
		cancel()
	}
	close(done)
}

// Run executes one load test with the current configuration and blocks until it finishes.
// Cancelling the context is handled as a manual stop.
func (ch *componentsHandler) Run(ctx context.Context) (*common.TestResult, error) {
	o, runCtx, done, err := ch.prepareRun(ctx)
	if err != nil {
		return nil, err
	}
	defer ch.finishRun(done)

	return o.Run(runCtx)
}

// StartRun starts a load test in the background
func (ch *componentsHandler) StartRun() error {
	o, runCtx, done, err := ch.prepareRun(context.Background())
	if err != nil {
		return err
	}

	go func() {
		defer ch.finishRun(done)

		result, errRun := o.Run(runCtx)
		if errRun != nil {
			log.Error("run failed", "error", errRun)
			return
		}

		log.Info("run finished", "reason", result.StopReason.String(), "max stable users", result.MaxStableUsers)
	}()

	return nil
}

// StopRun requests a manual stop of the active run
func (ch *componentsHandler) StopRun() error {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	if !ch.running {
		return common.ErrNoActiveRun
	}
	ch.current.Stop()

	return nil
}

// Status returns the status of the active or last run
func (ch *componentsHandler) Status() common.RunStatus {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	if check.IfNil(ch.current) {
		return common.RunStatus{State: common.StateInit}
	}

	return ch.current.Status()
}

// LatestStep returns the most recent step of the active or last run
func (ch *componentsHandler) LatestStep() (common.Step, bool) {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	if check.IfNil(ch.current) {
		return common.Step{}, false
	}

	return ch.current.LatestStep()
}

// History returns the steps of the active or last run
func (ch *componentsHandler) History() []common.Step {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	if check.IfNil(ch.current) {
		return make([]common.Step, 0)
	}

	return ch.current.History()
}

// Result returns the result of the last finished run
func (ch *componentsHandler) Result() *common.TestResult {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	if check.IfNil(ch.current) {
		return nil
	}

	return ch.current.Result()
}

// Config returns the configuration used by the next run
func (ch *componentsHandler) Config() config.Config {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	return ch.cfg
}

// UpdateConfig replaces the adapter, strategy and orchestrator sections used by the next run.
// The web section is fixed at start-up.
func (ch *componentsHandler) UpdateConfig(cfg config.Config) error {
	ch.mutRun.Lock()
	defer ch.mutRun.Unlock()

	if ch.running {
		return common.ErrRunInProgress
	}

	cfg.Web = ch.cfg.Web
	cfg.ApplyDefaults()
	err := checkConfig(cfg, ch.locustCommand)
	if err != nil {
		return err
	}

	ch.cfg = cfg
	log.Info("configuration replaced", "adapter", cfg.Adapter.Type, "strategy", cfg.Strategy.Type)

	return nil
}

// StartWebServer starts the management surface. Events of the following runs are pushed to it.
func (ch *componentsHandler) StartWebServer() error {
	ch.mutRun.Lock()
	defer ch.mutRun.Unlock()

	if !check.IfNil(ch.server) {
		return nil
	}

	store, err := ch.openStore()
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.ArgsWebServer{
		ListenAddress:      ch.cfg.Web.ListenAddress,
		StatusPushInterval: ch.cfg.Web.StatusPushInterval(),
		Controller:         ch,
		Store:              store,
		GeneralHandler:     api.CORSMiddleware,
	})
	if err != nil {
		return err
	}

	server.Start()
	ch.server = server

	return nil
}

// GetStore returns the run store component, nil while no component needed it
func (ch *componentsHandler) GetStore() RunStore {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	return ch.store
}

// GetServer returns the server component, nil when the management surface was not started
func (ch *componentsHandler) GetServer() Server {
	ch.mutRun.RLock()
	defer ch.mutRun.RUnlock()

	return ch.server
}

// Close stops the active run, waits for its finalization and closes the inner components
func (ch *componentsHandler) Close() {
	ch.mutRun.Lock()
	running, current, done, server := ch.running, ch.current, ch.runDone, ch.server
	ch.server = nil
	ch.mutRun.Unlock()

	if running {
		current.Stop()
		<-done
	}

	if !check.IfNil(server) {
		err := server.Close()
		if err != nil {
			log.Warn("failed to close the web server", "error", err)
		}
	}

	ch.mutRun.Lock()
	store := ch.store
	ch.store = nil
	ch.mutRun.Unlock()

	if check.IfNil(store) {
		return
	}
	err := store.Close()
	if err != nil {
		log.Warn("failed to close the run store", "error", err)
	}
}

// IsInterfaceNil returns true if the value under the interface is nil
func (ch *componentsHandler) IsInterfaceNil() bool {
	return ch == nil
}
