package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autopid/internal/adapter"
	"autopid/internal/certstore"
	"autopid/internal/clock"
	"autopid/internal/config"
	"autopid/internal/devstatus"
	"autopid/internal/dispatch"
	"autopid/internal/evaluator"
	"autopid/internal/liveness"
	"autopid/internal/protocol"
	"autopid/internal/scheduler"
	"autopid/internal/statusapi"
)

var (
	configFile string
	serverAddr string
)

func init() {
	flag.StringVar(&configFile, "config", "allpids.yaml", "Path to the AllPids configuration file")
	flag.StringVar(&serverAddr, "addr", ":8080", "Status API listen address")
	flag.Parse()
}

func main() {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	st, err := config.BuildStore(cfg)
	if err != nil {
		log.Fatalf("Error building parameter store: %v", err)
	}

	port, err := adapter.OpenPort(adapter.TransportConfig{
		Type:     cfg.Transport.Type,
		Address:  cfg.Transport.Address,
		BaudRate: cfg.Transport.BaudRate,
	})
	if err != nil {
		log.Fatalf("Error opening adapter transport: %v", err)
	}
	drv := adapter.New(port)

	protoCell := protocol.NewProtocolCell()
	clk := clock.NewReal()

	monitor := liveness.New(st)

	certDir := cfg.CertDir
	if certDir == "" {
		certDir = "certs"
	}
	certs := certstore.NewDirManager(certDir)

	destinations, err := dispatch.NewDestinations(cfg.Destinations, certs, clk)
	if err != nil {
		log.Fatalf("Error building destinations: %v", err)
	}
	dispatcher := dispatch.New(destinations, st, clk, monitor)

	// The scheduler's per-parameter MQTT publish reuses the same
	// connected sinks the Destination Dispatcher sends on.
	publisher := dispatch.NewDestinationPublisher(destinations)

	sched := scheduler.New(drv, st, evaluator.New(), protoCell, clk, scheduler.Config{
		StandardProtocol: cfg.Global.StandardProtocol,
		CustomInit:       cfg.Global.CustomInit,
		VehicleInit:      cfg.Global.VehicleInit,
		AdapterTimeout:   12 * time.Second,
		Publisher:        publisher,
	})

	// Forbidden sub-strings (ATH0/ATS0/ATE1) are rejected once the
	// scheduler's poll loop starts driving the adapter; explicit
	// class-init strings bypass this via Driver.SendInit.
	drv.SetHotPath(true)

	status := statusapi.New(st, monitor, "autopid", cfg)

	devBits := devstatus.NewFlags()

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		log.Printf("Starting status API on %s", serverAddr)
		if err := http.ListenAndServe(serverAddr, status.Router()); err != nil {
			log.Printf("status API stopped: %v", err)
		}
	}()

	go monitor.Run(stop)
	go dispatcher.Run(stop)

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if devBits.IsSleeping() || !devBits.IsAutopidEnabled() {
					continue
				}
				sched.RunPass()
				status.BroadcastSnapshot()
			}
		}
	}()

	go func() {
		defer close(done)
		<-stop
		dispatcher.Close()
		log.Println("Cleanup completed")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	close(stop)
	<-done
}
