// Copyright 2026 FCCU Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fccudemo reproduces the three original example programs (a plain
// register/report/drain walkthrough, a bus-notifier wiring demo, and a
// periodic-scheduler demo) as subcommands of one binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/faultcollector/fccu-core/pkg/adminapi"
	"github.com/faultcollector/fccu-core/pkg/busmqtt"
	"github.com/faultcollector/fccu-core/pkg/fccu"
	"github.com/faultcollector/fccu-core/pkg/logger"
	"github.com/faultcollector/fccu-core/pkg/metrics"
	"github.com/faultcollector/fccu-core/pkg/watchdog"
)

func main() {
	logger.Initialize()
	log := logger.For("fccudemo")

	cmd := "basic"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "basic":
		runBasicDemo(log)
	case "bus":
		runBusDemo(log)
	case "ztask":
		runZtaskDemo(log)
	case "multi":
		runMultiEngineDemo(log)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q; want one of: basic, bus, ztask, multi\n", cmd)
		os.Exit(2)
	}
}

func simpleHook(_ fccu.FaultEvent, _ any) fccu.HookAction {
	return fccu.HookHandled
}

// runBasicDemo mirrors the original basic_demo.cpp: register two faults,
// report against them, and drain once.
func runBasicDemo(log *zap.SugaredLogger) {
	engine, err := fccu.NewCollectorEngine(fccu.DefaultConfig())
	if err != nil {
		log.Fatalw("build engine", "error", err)
	}
	must(log, engine.RegisterFault(0, 0xA001, 0, 1))
	must(log, engine.RegisterFault(1, 0xA002, 0, 2))
	must(log, engine.RegisterHook(0, simpleHook, nil))
	must(log, engine.RegisterHook(1, simpleHook, nil))

	must(log, engine.Report(0, 0x11, fccu.PriorityHigh))
	must(log, engine.Report(1, 0x22, fccu.PriorityMedium))
	log.Infow("reported", "active_faults", engine.ActiveFaultCount(), "state", engine.GlobalState())

	n := engine.Drain()
	log.Infow("basic demo drained", "processed", n, "active_faults", engine.ActiveFaultCount())
}

// runBusDemo mirrors the original bus_demo.cpp, publishing drained events
// onto an MQTT broker instead of an in-process mccc bus.
func runBusDemo(log *zap.SugaredLogger) {
	engine, err := fccu.NewCollectorEngine(fccu.DefaultConfig())
	if err != nil {
		log.Fatalw("build engine", "error", err)
	}
	must(log, engine.RegisterFault(0, 0xA001, 0, 1))
	must(log, engine.RegisterFault(1, 0xA002, 0, 1))
	must(log, engine.RegisterHook(0, simpleHook, nil))
	must(log, engine.RegisterHook(1, simpleHook, nil))

	opts := mqtt.NewClientOptions().AddBroker("tcp://localhost:1883").SetClientID("fccudemo")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Warnw("mqtt connect failed, bus notifications will be logged as publish failures", "error", token.Error())
	}
	defer client.Disconnect(250)

	notifier := busmqtt.New(client, "fccu/fault/%d", 0, log)
	engine.SetBusNotifier(notifier.BusNotifier(), nil)

	must(log, engine.Report(0, 0x11, fccu.PriorityHigh))
	must(log, engine.Report(1, 0x22, fccu.PriorityMedium))
	n := engine.Drain()
	log.Infow("bus demo drained", "processed", n)
}

// runZtaskDemo mirrors the original ztask_demo.cpp's cooperative-scheduler
// pattern: a ticker periodically calls Drain, supervised by a watchdog
// heartbeat so a stalled scheduler tick is caught.
func runZtaskDemo(log *zap.SugaredLogger) {
	engine, err := fccu.NewCollectorEngine(fccu.DefaultConfig())
	if err != nil {
		log.Fatalw("build engine", "error", err)
	}
	must(log, engine.RegisterFault(0, 0xB001, 0, 3))
	must(log, engine.BindFaultHsm(0, 3))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	metricsSrv := metrics.SetupMetricsEndpoint(":9102")
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		_ = metrics.Shutdown(shutdownCtx, metricsSrv)
	}()

	adminSrv := &http.Server{Addr: ":8089", Handler: adminapi.NewRouter(engine)}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnw("admin api stopped", "error", err)
		}
	}()
	defer adminSrv.Close()

	wd := watchdog.New(ctx, time.NewTicker(500*time.Millisecond), log)
	go wd.Start()
	heartbeatID := wd.RegisterHeartbeat("fccudemo-ztask-drain", 3, 5)
	defer wd.UnregisterHeartbeat(heartbeatID)

	reportTicker := time.NewTicker(150 * time.Millisecond)
	drainTicker := time.NewTicker(100 * time.Millisecond)
	defer reportTicker.Stop()
	defer drainTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infow("ztask demo finished", "active_faults", engine.ActiveFaultCount())
			return
		case <-reportTicker.C:
			err := engine.Report(0, 0, fccu.PriorityMedium)
			metrics.RecordReport("medium", err == nil)
			if err != nil {
				log.Debugw("report denied", "error", err)
			}
		case <-drainTicker.C:
			drained := engine.Drain()
			for i := 0; i < drained; i++ {
				metrics.RecordProcessed()
			}
			metrics.SetActiveFaults(engine.ActiveFaultCount())
			metrics.SetBackpressureLevel(uint8(engine.GetBackpressureLevel()))
			wd.ReportHeartbeatStatus(heartbeatID, watchdog.StatusOK)
		}
	}
}

// runMultiEngineDemo shows two independently-sized collectors coexisting
// in one process, the Go replacement for the original's ability to
// instantiate FaultCollector<...> at multiple distinct sizes.
func runMultiEngineDemo(log *zap.SugaredLogger) {
	sensors, err := fccu.NewCollectorEngine(fccu.Config{
		MaxFaults: 8, QueueDepth: 8, QueueLevels: 2, MaxPerFaultHsm: 2, RecentRingSize: 8,
	})
	if err != nil {
		log.Fatalw("build sensors engine", "error", err)
	}
	drivetrain, err := fccu.NewCollectorEngine(fccu.Config{
		MaxFaults: 64, QueueDepth: 64, QueueLevels: 4, MaxPerFaultHsm: 8, RecentRingSize: 32,
	})
	if err != nil {
		log.Fatalw("build drivetrain engine", "error", err)
	}

	must(log, sensors.RegisterFault(0, 0xC001, 0, 1))
	must(log, drivetrain.RegisterFault(0, 0xD001, 0, 1))
	must(log, sensors.Report(0, 0, fccu.PriorityLow))
	must(log, drivetrain.Report(0, 0, fccu.PriorityCritical))
	sensors.Drain()
	drivetrain.Drain()

	log.Infow("multi-engine demo",
		"sensors_active", sensors.ActiveFaultCount(),
		"drivetrain_active", drivetrain.ActiveFaultCount(),
		"drivetrain_state", drivetrain.GlobalState())
}

func must(log *zap.SugaredLogger, err error) {
	if err != nil {
		log.Fatalw("unexpected error in demo setup", "error", err)
	}
}
