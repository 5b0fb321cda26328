package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	responsecache "github.com/always-cache/response-cache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	driverFlag         string
	dbFilenameFlag     string
	redisAddrFlag      string
	lifetimeFlag       time.Duration
	cacheTimeFlag      bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&driverFlag, "store", "", "Cache store to use: sqlite, memory or redis (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "", "Cache DB file name (overrides config, use 'memory' for in-memory db)")
	flag.StringVar(&redisAddrFlag, "redis", "", "Redis address (overrides config)")
	flag.DurationVar(&lifetimeFlag, "lifetime", 0, "Default lifetime of cached responses (overrides config)")
	flag.BoolVar(&cacheTimeFlag, "cache-time-header", false, "Add header recording when a response was cached")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [serve|flush]\n", os.Args[0])
		flag.PrintDefaults()
	}

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}

	store, closeStore, err := config.NewStore()
	if err != nil {
		log.Fatal().Err(err).Str("driver", config.Store.Driver).Msg("Could not open cache store")
	}
	defer closeStore()

	cacheConfig := config.Config(store)
	cacheConfig.Logger = &log.Logger
	cacheConfig.Tokens = sessionTokens
	cacheConfig.Metrics = responsecache.NewMetrics(prometheus.DefaultRegisterer)
	rc := responsecache.New(cacheConfig)

	switch cmd := flag.Arg(0); cmd {
	case "flush":
		if err := rc.Flush(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Could not flush cache")
		}
		log.Info().Msg("Cache flushed")
	case "", "serve":
		log.Info().Msgf("Serving demo application on port %d", portFlag)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", portFlag), newRouter(rc)); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (responsecache.FileConfig, error) {
	var config responsecache.FileConfig
	if configFilenameFlag != "" {
		var err error
		if config, err = responsecache.Load(configFilenameFlag); err != nil {
			return config, err
		}
	}
	if driverFlag != "" {
		config.Store.Driver = driverFlag
	}
	if dbFilenameFlag != "" {
		config.Store.Path = dbFilenameFlag
		if dbFilenameFlag == "memory" {
			config.Store.Path = ""
		}
	}
	if redisAddrFlag != "" {
		config.Store.Addr = redisAddrFlag
		if driverFlag == "" {
			config.Store.Driver = "redis"
		}
	}
	if lifetimeFlag > 0 {
		config.Lifetime = lifetimeFlag
	}
	if cacheTimeFlag {
		config.AddCacheTimeHeader = true
	}
	return config, nil
}
