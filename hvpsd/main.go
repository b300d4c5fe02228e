package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/itohio/gohvps/pkg/config"
	"github.com/itohio/gohvps/pkg/hvps"
	"github.com/itohio/gohvps/pkg/monitor"
	"github.com/itohio/gohvps/pkg/recorder"
	"github.com/itohio/gohvps/pkg/server"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated board instead of a serial port")
		listenFlag = flag.String("listen", "", "Override listen address (e.g. :8080)")
		recordFlag = flag.Bool("record", false, "Record telemetry to CSV (overrides config)")
		listFlag   = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if *listFlag {
		ports, err := hvps.Ports()
		if err != nil {
			log.Fatalf("[main] %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("[main] failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *listenFlag != "" {
		cfg.Server.ListenAddr = *listenFlag
	}
	if *recordFlag {
		cfg.Recorder.Enabled = true
	}

	log.Println("[main] hvpsd starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	var transport *hvps.Serial
	if *mockFlag {
		transport = hvps.NewMockSerial(&cfg.Mock, cfg.Board.Channels, cfg.Limits(), cfg.Serial.OpenTimeout, cfg.Serial.ReadTimeout)
	} else {
		transport = hvps.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Serial.OpenTimeout, cfg.Serial.ReadTimeout)
	}
	if err := transport.Connect(); err != nil {
		log.Fatalf("[main] connect %s: %v", transport.Name(), err)
	}
	defer transport.Close()
	log.Printf("[main] connected to %s", transport.Name())

	rec := recorder.New(cfg.Recorder)
	defer rec.Close()

	m := monitor.New(cfg, transport)
	m.OnUpdate(func(snap monitor.Snapshot) {
		if !snap.Updated {
			return
		}
		if err := rec.Record(snap.Last); err != nil {
			log.Printf("[recorder] %v", err)
		}
	})

	srv := server.New(cfg.Server, m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[main] polling stopped: %v", err)
		}
	}()

	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
		cancel()
	}
	wg.Wait()

	stats := m.Latest().Stats
	log.Printf("[main] stopped after %d ticks: %d samples, %d overruns, %d commands",
		stats.Ticks, stats.Samples, stats.Overruns, stats.Commands)
}
