package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	slm "github.com/ztkent/lux-meter/internal/sunlightmeter"
	"github.com/ztkent/lux-meter/internal/tools"
	"github.com/ztkent/lux-meter/tsl2561"
)

/*
	Entry point for the Lux Meter.
	It should be running at startup, on a Raspberry Pi, with a TSL2561 sensor connected.
*/

func main() {
	cfg, err := tools.LoadConfig()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	l, err := tools.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	tsl2561.SetLogger(l)

	pid := os.Getpid()
	l.Infof("LuxMeter [%d]", pid)

	// connect to the lux sensor
	device, err := connectSensor(cfg)
	if err != nil {
		l.Fatalf("Failed to connect to the TSL2561 sensor: %v", err)
	}
	defer device.Close()

	// the database only holds the sensor configuration
	db, err := tools.ConnectSqlite(cfg.DBPath, l)
	if err != nil {
		l.Fatalf("Failed to connect to the sqlite database: %v", err)
	}
	defer db.Close()

	meter := &slm.SLMeter{
		TSL2561:        device,
		LuxResultsChan: make(chan slm.LuxResults),
		Settings:       &tools.SettingsStore{DB: db},
		Log:            l,
		Autogain:       cfg.Autogain,
		RecordInterval: cfg.RecordInterval,
		MaxJobDuration: cfg.MaxJobDuration,
		Pid:            pid,
	}
	if err := meter.RestoreSettings(); err != nil {
		l.WithError(err).Warn("Failed to restore sensor settings, using defaults")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: l, NoColor: true}))
	r.Use(handleServerPanic)
	defineRoutes(r, meter)

	l.Infof("Starting HTTP server on port %s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, r); err != nil {
		l.Fatalf("Failed to start HTTP server: %v", err)
	}
}

func connectSensor(cfg tools.Config) (*tsl2561.TSL2561, error) {
	model, err := tsl2561.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Transport == "periph" {
		bus, err := tsl2561.OpenPeriph(cfg.Bus, cfg.Address)
		if err != nil {
			return nil, err
		}
		device, err := tsl2561.NewWithBus(bus, cfg.Address, model)
		if err != nil {
			bus.Close()
			return nil, err
		}
		return device, nil
	}
	return tsl2561.NewTSL2561(model, cfg.Bus, cfg.Address)
}

func defineRoutes(r *chi.Mux, meter *slm.SLMeter) {
	// Keep the most recent results in memory for the dashboard
	go meter.MonitorAndRecordResults(context.Background())

	r.Route("/sunlightmeter", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/measure", meter.Measure())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/status", meter.ServeSensorStatus())
		r.Get("/settings", meter.ServeSettings())
		r.With(tools.CheckInNetwork).Post("/settings", meter.ServeSettings())
		r.Get("/graph", meter.ServeResultsGraph())
		r.With(tools.CheckInNetwork).Get("/clear", meter.Clear())
	})

	// Lux Meter API, these serve a JSON response
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/measure", meter.Measure())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/status", meter.ServeSensorStatus())
		r.Get("/settings", meter.ServeSettings())
		r.With(tools.CheckInNetwork).Post("/settings", meter.ServeSettings())
	})

	// Route for service identification
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			ServiceName string `json:"service_name"`
		}{
			ServiceName: "Lux Meter",
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})
}

func handleServerPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slm.ServeResponse(w, r, fmt.Sprintf("%v", err), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
