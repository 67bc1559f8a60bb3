package main

import (
	"context"
	"fmt"
	"os"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	"github.com/core-tools/procsim/pkg/console"
	"github.com/core-tools/procsim/pkg/logging"
	"github.com/core-tools/procsim/pkg/simulator"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" description:"path to a YAML configuration file, the default tree when empty"`
	RunDuration int    `long:"run-duration" description:"stop after this many seconds, 0 runs until the stop key"`
	LogLevel    string `long:"log-level" description:"debug, info, warn or error"`
	LogBackend  string `long:"log-backend" description:"zap or sprintf"`
	Seed        int64  `long:"seed" description:"seed for scheduling draws and registers, 0 seeds from the clock"`
	Validate    bool   `long:"validate" description:"validate the configuration and exit"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var opts flagOptions
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(argv)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return 0
		}
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		return 1
	}

	config, err := loadConfig(opts)
	if err != nil {
		fmt.Printf("Configuration failed: %v\n", err)
		return 1
	}

	if err := simulator.ValidateConfig(config); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return 1
	}

	funcs, flush, err := logFuncs(config.Simulator)
	if err != nil {
		fmt.Printf("Logger setup failed: %v\n", err)
		return 1
	}
	defer flush()

	logger := logging.NewLogger(logPrefix("procsim"), funcs)

	logger.Infof("opts: %+v", opts)

	if opts.Validate {
		summary := simulator.GetConfigSummary(config)
		logger.Infof("Configuration is valid, processes: %d, scheduled: %d, log_backend: %s, stop_key: %s",
			summary.TotalProcesses, summary.ScheduledProcesses, summary.LogBackend, summary.StopKey)
		for _, proc := range summary.Processes {
			logger.Infof("Process, id: %d, parent: %d, name: %s, priority: %s, weight: %v",
				proc.ID, proc.Parent, proc.Name, proc.Priority, proc.Weight)
		}
		return 0
	}

	logger.Infof("Starting...")

	err = simulator.Run(context.Background(), config, console.DefaultOpenInput(), console.NewStdoutRenderer(), logger)
	if err != nil {
		logger.Errorf("Simulator failed: %v", err)
		return 1
	}

	return 0
}

// loadConfig reads the file if one is given and lets flags override it
func loadConfig(opts flagOptions) (*simulator.SimulatorConfig, error) {
	config := simulator.DefaultConfig()
	if opts.Config != "" {
		loaded, err := simulator.LoadConfigFromFile(opts.Config)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if opts.RunDuration < 0 {
		return nil, fmt.Errorf("run duration cannot be negative: %d", opts.RunDuration)
	}
	if opts.RunDuration > 0 {
		config.Simulator.RunDuration = time.Duration(opts.RunDuration) * time.Second
	}
	if opts.LogLevel != "" {
		config.Simulator.LogLevel = opts.LogLevel
	}
	if opts.LogBackend != "" {
		config.Simulator.LogBackend = opts.LogBackend
	}
	if opts.Seed != 0 {
		config.Simulator.Seed = opts.Seed
	}

	return config, nil
}

func logFuncs(options simulator.SimulatorOptions) (logging.LogFuncs, func(), error) {
	switch options.LogBackend {
	case simulator.LogBackendSprintf:
		level, err := logging.ParseLevel(options.LogLevel)
		if err != nil {
			return logging.LogFuncs{}, nil, err
		}
		logger := sprintfLogging.NewStdSprintfLogger()
		return logging.NewFilteredFuncs(level, logging.LogFuncs{
			Debugf: logger.Debugf,
			Infof:  logger.Infof,
			Warnf:  logger.Warnf,
			Errorf: logger.Errorf,
		}), func() {}, nil

	default:
		zapConfig := logging.DefaultZapConfig()
		zapConfig.Level = options.LogLevel
		zapConfig.Format = options.LogFormat
		zapLogger, err := logging.NewZapLogger(zapConfig)
		if err != nil {
			return logging.LogFuncs{}, nil, err
		}
		return logging.ZapLogFuncs(zapLogger.Sugar()), func() { _ = zapLogger.Sync() }, nil
	}
}
