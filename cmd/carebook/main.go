// Package main is the carebook CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/carebook/carebook/internal/auth"
	"github.com/carebook/carebook/internal/chatbot"
	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/embedding"
	"github.com/carebook/carebook/internal/keyword"
	"github.com/carebook/carebook/internal/knowledge"
	"github.com/carebook/carebook/internal/server"
	"github.com/carebook/carebook/internal/storage"
	"github.com/carebook/carebook/internal/triage"
	"github.com/carebook/carebook/internal/uploads"
	"github.com/carebook/carebook/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/carebook/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "carebook server" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "triage":
		runTriage()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("carebook version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Knowledge.WatchOrDefault() {
		watch := knowledge.NewWatcher(components.Base, logger)
		if err := watch.Start(watchCtx); err != nil {
			logger.Warn("knowledge watcher failed to start", zap.Error(err))
		} else {
			defer watch.Stop()
		}
	}

	srv := server.NewServer(
		components.Store,
		components.Auth,
		components.Answerer,
		components.Base,
		components.Uploads,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so
// "carebook triage \"chest pain\" --location X" would otherwise leave
// --location unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runTriage() {
	fs := flag.NewFlagSet("triage", flag.ExitOnError)
	location := fs.String("location", "", "patient location for the specialist maps link")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: carebook triage [flags] <symptoms>")
		os.Exit(1)
	}
	symptoms := strings.TrimSpace(strings.Join(fs.Args(), " "))

	result := triage.Classify(symptoms)
	referral := triage.Route(symptoms, *location)

	switch *outputFormat {
	case "json":
		out := map[string]interface{}{
			"urgency_score":       result.UrgencyScore,
			"time_recommendation": result.TimeRecommendation,
			"key_symptoms":        result.KeySymptoms,
			"notes":               result.Notes,
			"specialist":          referral.Specialist,
		}
		if *location != "" {
			out["maps_url"] = referral.MapsURL
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("urgency_score:       %d\n", result.UrgencyScore)
		fmt.Printf("time_recommendation: %s\n", result.TimeRecommendation)
		fmt.Printf("specialist:          %s\n", referral.Specialist)
		fmt.Printf("notes:               %s\n", result.Notes)
		if *location != "" {
			fmt.Printf("maps_url:            %s\n", referral.MapsURL)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: carebook ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	answer, err := components.Answerer.Answer(context.Background(), question)
	if err == chatbot.ErrNoAnswer {
		fmt.Println("No relevant information found.")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var status struct {
		Appointments    int64                  `json:"appointments"`
		Patients        int64                  `json:"patients"`
		KnowledgeChunks int                    `json:"knowledge_chunks"`
		DiskUsageBytes  *int64                 `json:"disk_usage_bytes,omitempty"`
		Config          map[string]interface{} `json:"config,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("appointments:      %d\n", status.Appointments)
		fmt.Printf("patients:          %d\n", status.Patients)
		fmt.Printf("knowledge_chunks:  %d\n", status.KnowledgeChunks)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    storage.Store
	Embedder embedding.Embedder
	Lexical  keyword.KeywordIndex
	Base     *knowledge.Base
	Answerer *chatbot.Answerer
	Auth     *auth.Service
	Uploads  *uploads.Store
}

func (c *Components) Close() {
	if c.Base != nil {
		_ = c.Base.Close()
	}
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var store storage.Store
	var err error
	switch cfg.Storage.Backend {
	case "file":
		store, err = storage.NewFileStore(cfg.Storage.DataDir)
	default:
		store, err = storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// With no embedding model configured, retrieval runs on the lexical
	// index alone.
	var embedder embedding.Embedder
	if cfg.Embedding.ModelPath != "" {
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			logger.Warn("embedding model unavailable, using lexical retrieval", zap.Error(err))
		} else {
			embedder = onnxEmbedder
		}
	}

	lexical, err := keyword.NewBleveIndex(cfg.Knowledge.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	base := knowledge.NewBase(knowledge.Options{
		DocumentPath: cfg.Knowledge.DocumentPath,
		Embedder:     embedder,
		Lexical:      lexical,
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		Logger:       logger,
	})
	if err := base.Load(context.Background()); err != nil {
		logger.Warn("knowledge base unavailable", zap.Error(err))
	}

	var qa chatbot.QAModel
	if cfg.Chatbot.QAEndpoint != "" {
		qa = chatbot.NewHTTPQAModel(cfg.Chatbot.QAEndpoint, time.Duration(cfg.Chatbot.QATimeoutSeconds)*time.Second)
	} else {
		qa = chatbot.NewLexicalQA()
	}
	answerer := chatbot.NewAnswerer(base, qa, cfg.Chatbot.TopK, cfg.Chatbot.MinScoreOrDefault(), logger)

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	authSvc := auth.NewService(store, issuer, cfg.Auth.DoctorIDs)

	uploadStore, err := uploads.NewStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	return &Components{
		Store:    store,
		Embedder: embedder,
		Lexical:  lexical,
		Base:     base,
		Answerer: answerer,
		Auth:     authSvc,
		Uploads:  uploadStore,
	}, nil
}

func printUsage() {
	fmt.Println(`carebook - Healthcare appointment and triage service

Usage:
  carebook server [flags]             Start the HTTP server
  carebook triage [flags] <symptoms>  Run urgency triage on symptoms
  carebook ask [flags] <question>     Ask the medical knowledge base
  carebook status [flags]             Show server status
  carebook version                    Show version
  carebook help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/carebook/config.yaml)
  --debug            Enable debug logging

Triage Flags:
  --location string  Patient location for the specialist maps link
  --output string    Output format: text or json (default: text)

Ask Flags:
  --config string    Config file path

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  carebook server
  carebook triage "chest pain and shortness of breath" --location "Springfield"
  carebook ask "what can I do if I have a headache?"
  carebook status --output json`)
}
