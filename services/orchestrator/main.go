package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/iulianpascalau/load-orchestrator/commonGo"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/common"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/config"
	"github.com/iulianpascalau/load-orchestrator/services/orchestrator/factory"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"
)

const (
	defaultLogsPath      = "logs"
	logFilePrefix        = "orchestrator"
	logFileLifeSpanInSec = 86400 // 24h
	logFileLifeSpanInMB  = 1024  // 1GB
	defaultConfigFile    = "./config.toml"
	envFile              = "./.env"
	envLocustCommand     = "LOCUST_COMMAND"
	exitCodeInterrupted  = 130
)

var errInterrupted = errors.New("test interrupted by user")
var errRunFailed = errors.New("load test failed")

// appVersion should be populated at build time using ldflags
// Usage examples:
// Linux/macOS:
//
//	go build -v -ldflags="-X main.appVersion=$(git describe --all | cut -c7-32)
var appVersion = "undefined"
var fileLogging commonGo.FileLoggingHandler

var (
	orchestratorHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}} [config file]
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`

	log = logger.GetOrCreate("main")

	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated value. For example" +
			", if set to *:INFO the logs for all packages will have the INFO level. However, if set to *:INFO,engine:DEBUG" +
			" the logs for all packages will have the INFO level, excepting the engine package which will receive a DEBUG" +
			" log level.",
		Value: "*:" + logger.LogInfo.String(),
	}
	// logFile is used when the log output needs to be logged in a file
	logSaveFile = cli.BoolFlag{
		Name:  "log-save",
		Usage: "Boolean option for enabling log saving. If set, it will automatically save all the logs into a file.",
	}
	// workingDirectory defines a flag for the path for the working directory.
	workingDirectory = cli.StringFlag{
		Name:  "working-directory",
		Usage: "This flag specifies the `directory` where the orchestrator will store logs.",
		Value: "",
	}
	// webMode serves the management surface instead of running a single test
	webMode = cli.BoolFlag{
		Name:  "web",
		Usage: "Boolean option for starting the REST/WebSocket management surface instead of running one test.",
	}

	envFileContents = map[string]string{
		envLocustCommand: "",
	}
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = orchestratorHelpTemplate
	app.Name = "Adaptive load test orchestrator"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "This is the entry point for running a closed loop load test against a load generator"
	app.Flags = []cli.Flag{
		logLevel,
		logSaveFile,
		workingDirectory,
		webMode,
	}
	app.Authors = []cli.Author{
		{
			Name:  "Iulian Pascalau",
			Email: "iulian.pascalau@gmail.com",
		},
	}

	app.Action = run

	err := app.Run(os.Args)
	closeFileLogging()
	if errors.Is(err, errInterrupted) {
		log.Warn(err.Error())
		os.Exit(exitCodeInterrupted)
	}
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func closeFileLogging() {
	if !check.IfNil(fileLogging) {
		_ = fileLogging.Close()
	}
}

func run(ctx *cli.Context) error {
	saveLogFile := ctx.GlobalBool(logSaveFile.Name)
	workingDir := ctx.GlobalString(workingDirectory.Name)

	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	fileLogging, err = commonGo.AttachFileLogger(log, defaultLogsPath, logFilePrefix, saveLogFile, workingDir)
	if err != nil {
		return err
	}

	if !check.IfNil(fileLogging) {
		timeLogLifeSpan := time.Second * time.Duration(logFileLifeSpanInSec)
		sizeLogLifeSpanInMB := uint64(logFileLifeSpanInMB)
		err = fileLogging.ChangeFileLifeSpan(timeLogLifeSpan, sizeLogLifeSpanInMB)
		if err != nil {
			return err
		}
	}

	log.Info("Starting load orchestrator", "version", appVersion, "pid", os.Getpid())

	err = commonGo.ReadEnvFile(envFile, envFileContents)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	configFile := defaultConfigFile
	if ctx.NArg() > 0 {
		configFile = ctx.Args().First()
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	components, err := factory.NewComponentsHandler(factory.ArgsComponentsHandler{
		Config:        *cfg,
		LocustCommand: envFileContents[envLocustCommand],
	})
	if err != nil {
		return err
	}
	defer components.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if ctx.GlobalBool(webMode.Name) {
		return serve(components, sigs)
	}

	return runOnce(components, sigs)
}

func serve(components factory.ComponentsHandler, sigs chan os.Signal) error {
	err := components.StartWebServer()
	if err != nil {
		return err
	}

	log.Info("Management surface started", "address", components.GetServer().Address())

	<-sigs

	log.Info("Application closing, calling Close on all subcomponents...")

	return nil
}

func runOnce(components factory.ComponentsHandler, sigs chan os.Signal) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigs:
			log.Info("interrupt received, stopping the load test")
			cancel()
		case <-runCtx.Done():
		}
	}()

	result, err := components.Run(runCtx)
	if err != nil {
		return err
	}

	writeSummary(os.Stdout, result)

	switch result.StopReason {
	case common.ReasonManual:
		return errInterrupted
	case common.ReasonError, common.ReasonTimeout:
		return fmt.Errorf("%w: %s", errRunFailed, result.StopMessage)
	default:
		return nil
	}
}
