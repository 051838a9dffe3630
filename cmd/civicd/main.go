// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the PublicBridge orchestration
// daemon. It wires the analyzer ensemble, routing engine, session manager
// and persistence together, exposes Prometheus metrics, and offers a
// one-shot report analysis mode for operators.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
	"github.com/Bouric0076/publicbridge-core/internal/analyzer/keyword"
	"github.com/Bouric0076/publicbridge-core/internal/analyzer/lexicon"
	"github.com/Bouric0076/publicbridge-core/internal/analyzer/llm"
	"github.com/Bouric0076/publicbridge-core/internal/buildinfo"
	"github.com/Bouric0076/publicbridge-core/internal/config"
	"github.com/Bouric0076/publicbridge-core/internal/ensemble"
	"github.com/Bouric0076/publicbridge-core/internal/logging"
	"github.com/Bouric0076/publicbridge-core/internal/orchestrator"
	"github.com/Bouric0076/publicbridge-core/internal/priority"
	"github.com/Bouric0076/publicbridge-core/internal/routing"
	"github.com/Bouric0076/publicbridge-core/internal/routing/steering"
	"github.com/Bouric0076/publicbridge-core/internal/session"
	"github.com/Bouric0076/publicbridge-core/internal/session/history"
	"github.com/Bouric0076/publicbridge-core/internal/store"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	reportText := flag.String("report", "", "analyze one report text and print the result as JSON")
	chatMode := flag.Bool("chat", false, "interactive chat mode on stdin")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("civicd %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsDir); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}
	defer cleanup()

	switch {
	case *reportText != "":
		analyzeOnce(ctx, orch, *reportText)
	case *chatMode:
		runChat(ctx, orch)
	default:
		runDaemon(ctx, cancel, cfg, orch)
	}
}

func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	analyzers := []analyzer.Analyzer{
		keyword.New(),
		lexicon.New(),
	}
	members := []ensemble.Member{
		{Analyzer: analyzers[0], Weight: cfg.Ensemble.Weights.Keyword},
		{Analyzer: analyzers[1], Weight: cfg.Ensemble.Weights.Lexicon},
	}
	remote := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	analyzers = append(analyzers, remote)
	members = append(members, ensemble.Member{Analyzer: remote, Weight: cfg.Ensemble.Weights.LLM})

	ens := ensemble.New(ensemble.Config{
		AdapterTimeout: cfg.AdapterTimeout(),
		CategoryBlend:  cfg.Ensemble.CategoryBlend,
		SignalBlend:    cfg.Ensemble.SignalBlend,
	}, members...)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Persistence is optional: without it the directory runs on the seed
	// profiles and reports are not stored.
	var st store.Store
	directory := routing.NewDirectory()
	if cfg.Store.Path != "" {
		sqlite, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { sqlite.Close() })
		if err := sqlite.Seed(ctx, routing.DefaultDepartments()); err != nil {
			cleanup()
			return nil, nil, err
		}
		departments, err := sqlite.Departments(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		for _, p := range departments {
			if err := directory.Register(p); err != nil {
				log.WithError(err).Warn("skipping invalid stored department")
			}
		}
		st = sqlite
	} else {
		directory = routing.NewDefaultDirectory()
	}

	var steer *steering.Engine
	if cfg.Routing.SteeringDir != "" {
		steer = steering.NewEngine(cfg.Routing.SteeringDir)
		if err := steer.LoadRules(); err != nil {
			log.WithError(err).Warn("failed to load steering rules, continuing without")
			steer = nil
		} else if err := steer.StartWatcher(); err != nil {
			log.WithError(err).Warn("steering hot-reload unavailable")
		} else {
			cleanups = append(cleanups, steer.StopWatcher)
		}
	}

	var hist session.HistoryStore
	if cfg.History.RedisAddr != "" {
		redisStore, err := history.New(history.Config{
			Address:  cfg.History.RedisAddr,
			Password: cfg.History.Password,
			DB:       cfg.History.DB,
			TTL:      cfg.HistoryTTL(),
		})
		if err != nil {
			log.WithError(err).Warn("redis history unavailable, using in-memory history")
		} else {
			cleanups = append(cleanups, func() { redisStore.Close() })
			hist = redisStore
		}
	}

	sessions := session.NewManager(session.Config{
		Window:        cfg.Session.Window,
		Timeout:       cfg.SessionTimeout(),
		SweepInterval: cfg.SweepInterval(),
	}, hist)

	orch := orchestrator.New(orchestrator.Deps{
		Ensemble: ens,
		Weights: priority.Weights{
			Urgency:    cfg.Priority.Urgency,
			Category:   cfg.Priority.Category,
			Confidence: cfg.Priority.Confidence,
			Emotional:  cfg.Priority.Emotional,
		},
		Router:    routing.NewEngine(directory),
		Steering:  steer,
		Sessions:  sessions,
		Store:     st,
		Analyzers: analyzers,
	})
	cleanups = append(cleanups, orch.Close)
	return orch, cleanup, nil
}

func analyzeOnce(ctx context.Context, orch *orchestrator.Orchestrator, text string) {
	analysis := orch.AnalyzeReport(ctx, orchestrator.ReportRequest{Text: text})
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode analysis: %v", err)
	}
	fmt.Println(string(data))
}

func runChat(ctx context.Context, orch *orchestrator.Orchestrator) {
	fmt.Println("PublicBridge assistant. Empty line or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			break
		}
		resp, err := orch.HandleChatTurn(ctx, orchestrator.ChatRequest{
			Message:   line,
			SessionID: sessionID,
		})
		if err != nil {
			log.Errorf("Chat turn failed: %v", err)
			sessionID = ""
			continue
		}
		sessionID = resp.SessionID
		fmt.Println(resp.Response)
	}
	if sessionID != "" {
		orch.EndChatSession(ctx, sessionID, -1)
	}
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, orch *orchestrator.Orchestrator) {
	orch.StartSessionSweeper()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(orch.Health())
		})
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			log.Infof("Metrics listening on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("Received %s, shutting down", sig)
	cancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}
