package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iulianpascalau/load-orchestrator/commonGo"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/adapter"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/storage"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/strategy"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/samber/lo"
)

var log = logger.GetOrCreate("api")

const defaultStatusPushInterval = 2 * time.Second

// ArgsWebServer defines the web server arguments
type ArgsWebServer struct {
	ListenAddress      string
	StatusPushInterval time.Duration
	Controller         RunController
	Store              RunStore
	GeneralHandler     func(http.Handler) http.Handler
}

type server struct {
	router             *gin.Engine
	httpServer         *http.Server
	controller         RunController
	store              RunStore
	hub                *hub
	metrics            *promMetrics
	listenAddr         string
	statusPushInterval time.Duration
	generalHandler     func(http.Handler) http.Handler
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if check.IfNil(args.Controller) {
		return nil, errors.New("run controller is required")
	}
	if check.IfNil(args.Store) {
		return nil, errors.New("run store is required")
	}
	if args.GeneralHandler == nil {
		return nil, errors.New("nil http handler")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &server{
		router:             router,
		controller:         args.Controller,
		store:              args.Store,
		hub:                newHub(),
		metrics:            newPromMetrics(),
		listenAddr:         args.ListenAddress,
		statusPushInterval: args.StatusPushInterval,
		generalHandler:     args.GeneralHandler,
	}
	if s.statusPushInterval <= 0 {
		s.statusPushInterval = defaultStatusPushInterval
	}

	s.setupRoutes()

	return s, nil
}

func (s *server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleGetStatus)
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleUpdateConfig)
		api.POST("/start", s.handleStart)
		api.POST("/stop", s.handleStop)
		api.GET("/metrics", s.handleGetMetrics)
		api.GET("/history", s.handleGetHistory)
		api.GET("/result", s.handleGetResult)
		api.GET("/strategies", s.handleGetStrategies)
		api.GET("/adapters", s.handleGetAdapters)
		api.GET("/runs", s.handleGetRuns)
		api.GET("/runs/:id/samples", s.handleGetRunSamples)
	}

	s.router.GET("/ws/metrics", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.handler()))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}

// Notify forwards a run event to the live subscribers and the exported metrics
func (s *server) Notify(event common.Event) {
	s.metrics.observe(event)
	s.hub.broadcast(event)
}

// Start listens and serves connections and starts the periodic status push
func (s *server) Start() {
	handler := s.generalHandler(s.router)

	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		log.Error("failed to listen", "error", err)
		return
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("starting HTTP server", "address", s.listenAddr)

		errServe := s.httpServer.Serve(ln)
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.Error("http server failed", "error", errServe)
		}
	}()

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	commonGo.CronJobStarter(ctx, s.pushStatus, s.statusPushInterval)
}

func (s *server) pushStatus(_ context.Context) {
	if s.hub.numClients() == 0 {
		return
	}

	s.hub.broadcast(common.Event{
		Type:      common.EventStatus,
		Timestamp: time.Now(),
		Payload:   s.controller.Status(),
	})
}

// Address returns the actual listen address
func (s *server) Address() string {
	return s.listenAddr
}

// Close gracefully stops the server
func (s *server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.hub.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		err := s.httpServer.Shutdown(ctx)
		if err != nil {
			return err
		}
	}
	s.wg.Wait()

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *server) IsInterfaceNil() bool {
	return s == nil
}

// --- Handlers ---

func (s *server) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Config())
}

func (s *server) handleUpdateConfig(c *gin.Context) {
	var cfg config.Config
	err := c.ShouldBindJSON(&cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err = s.controller.UpdateConfig(cfg)
	if errors.Is(err, common.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Debug("configuration updated", "sender", c.Request.RemoteAddr, "strategy", cfg.Strategy.Type)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleStart(c *gin.Context) {
	err := s.controller.StartRun()
	if errors.Is(err, common.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

func (s *server) handleStop(c *gin.Context) {
	err := s.controller.StopRun()
	if errors.Is(err, common.ErrNoActiveRun) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) handleGetMetrics(c *gin.Context) {
	step, ok := s.controller.LatestStep()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics collected yet"})
		return
	}

	c.JSON(http.StatusOK, step)
}

func (s *server) handleGetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"history": s.controller.History()})
}

func (s *server) handleGetResult(c *gin.Context) {
	result := s.controller.Result()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no finished run"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) handleGetStrategies(c *gin.Context) {
	names := lo.Map(strategy.Kinds(), func(kind strategy.Kind, _ int) string {
		return string(kind)
	})

	c.JSON(http.StatusOK, gin.H{"strategies": names})
}

func (s *server) handleGetAdapters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"adapters": adapter.Types()})
}

func (s *server) handleGetRuns(c *gin.Context) {
	runs, err := s.store.ListRuns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *server) handleGetRunSamples(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	samples, err := s.store.GetSamples(c.Request.Context(), runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"samples": samples})
}
