package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kisy/nbrmgr/model"
	"github.com/kisy/nbrmgr/pkg/engine"
	"github.com/kisy/nbrmgr/pkg/ingress"
	"github.com/kisy/nbrmgr/pkg/kernel"
	"github.com/kisy/nbrmgr/pkg/npu"
	"github.com/kisy/nbrmgr/pkg/resolver"
	"github.com/kisy/nbrmgr/pkg/stats"
	"github.com/kisy/nbrmgr/pkg/store"
	"github.com/kisy/nbrmgr/web"
)

type Config struct {
	Listen           string `toml:"listen"`
	QueueDepth       int    `toml:"queue_depth"`
	BurstCount       int    `toml:"burst_count"`
	BurstIntervalMS  int    `toml:"burst_interval_ms"`
	DelayIntervalSec int    `toml:"delay_interval_sec"`
	Verbose          bool   `toml:"verbose"`

	AutoRefreshOnStale      bool `toml:"auto_refresh_on_stale"`
	MaxNbrRetry             int  `toml:"max_nbr_retry"`
	MaxRefreshMacLearnRetry int  `toml:"max_refresh_mac_learn_retry"`
}

func main() {
	var configFile string
	var listenAddr string
	var verbose bool

	flag.StringVar(&configFile, "config", "nbrmgrd.toml", "Path to configuration file")
	flag.StringVar(&listenAddr, "listen", "", "Server listen address (overrides config)")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	var config Config
	if _, err := os.Stat(configFile); err == nil {
		if _, err := toml.DecodeFile(configFile, &config); err != nil {
			log.Fatalf("Failed to parse config file: %v", err)
		}
		log.Printf("Loaded config from %s", configFile)
	} else if os.IsNotExist(err) && configFile != "nbrmgrd.toml" {
		log.Fatalf("Config file not found: %s", configFile)
	}

	if listenAddr != "" {
		config.Listen = listenAddr
	}
	if config.Listen == "" {
		config.Listen = ":8080"
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 4096
	}
	if config.BurstCount <= 0 {
		config.BurstCount = 300
	}
	if config.BurstIntervalMS <= 0 {
		config.BurstIntervalMS = 1000
	}
	if config.DelayIntervalSec <= 0 {
		config.DelayIntervalSec = 5
	}
	if config.MaxNbrRetry <= 0 {
		config.MaxNbrRetry = 10
	}
	if config.MaxRefreshMacLearnRetry <= 0 {
		config.MaxRefreshMacLearnRetry = 100
	}
	if verbose {
		config.Verbose = true
	}

	log.Println("Starting neighbor manager...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := store.New()
	npuAdapter := npu.NewLogAdapter()
	kernelAdapter := kernel.NewNetlinkAdapter()

	resolveQ := make(chan model.Directive, config.QueueDepth)
	delayQ := make(chan model.Directive, config.QueueDepth)

	eng := engine.New(cache, npuAdapter, resolveQ, delayQ)
	eng.Verbose = config.Verbose
	eng.MaxNbrRetry = config.MaxNbrRetry
	eng.MaxRefreshMacLearn = config.MaxRefreshMacLearnRetry

	burstResolver := &resolver.Resolver{
		Name:     "burst-resolver",
		Queue:    resolveQ,
		Kernel:   kernelAdapter,
		Burst:    config.BurstCount,
		Interval: time.Duration(config.BurstIntervalMS) * time.Millisecond,
	}
	delayResolver := &resolver.Resolver{
		Name:     "delay-resolver",
		Queue:    delayQ,
		Kernel:   kernelAdapter,
		Burst:    config.BurstCount,
		Interval: time.Duration(config.DelayIntervalSec) * time.Second,
	}

	mainQ := make(chan model.Message, config.QueueDepth)
	vrf := ingress.NewVRFResolver()
	producer := ingress.NewProducer(mainQ, vrf)
	producer.Verbose = config.Verbose
	producer.AutoRefreshOnStale = config.AutoRefreshOnStale

	if err := producer.Bootstrap(); err != nil {
		log.Fatalf("Failed to bootstrap neighbor/interface state: %v", err)
	}

	go burstResolver.Run(ctx)
	go delayResolver.Run(ctx)
	go eng.Run(ctx, mainQ)
	go func() {
		if err := producer.Run(ctx); err != nil {
			log.Fatalf("ingress producer stopped: %v", err)
		}
	}()

	exporter := stats.NewExporter(cache)
	prometheus.MustRegister(exporter)

	srv := web.NewServer(cache)
	srv.RegisterHandlers()

	server := &http.Server{Addr: config.Listen}
	go func() {
		log.Printf("Web server listening on %s", config.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			dumpCh := make(chan string)
			mainQ <- model.Message{Tag: model.MsgDumpReq, Dump: dumpCh}
			log.Print(<-dumpCh)
			continue
		}
		break
	}

	log.Println("Shutting down...")
	cancel()
}
