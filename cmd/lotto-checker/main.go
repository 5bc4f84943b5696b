package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/lotto-checker/internal/capture"
	"github.com/zombor/lotto-checker/internal/flow"
	"github.com/zombor/lotto-checker/internal/history"
	"github.com/zombor/lotto-checker/internal/scanning"
	"github.com/zombor/lotto-checker/internal/web"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// historyUsage marks --history as an extra. The scan flow itself keeps no files.
const historyUsage = "Optional extra beyond the core scan flow, which keeps no files: " +
	"persist successful scans and their ticket images in this directory (disabled when empty)"

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("lotto-checker")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		scannerType    = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'gemini-classic' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY or API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		geminiJSONMode = fs.BoolLong("gemini-json-mode", "Ask Gemini for an application/json response")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		cameraDevice   = fs.StringLong("camera-device", "", "Server attached camera read through ffmpeg, e.g. /dev/video0 (default: browser camera)")
		ffmpegPath     = fs.StringLong("ffmpeg", "ffmpeg", "ffmpeg executable used for the server camera")
		historyDir     = fs.StringLong("history", "", historyUsage)
		sessionIdle    = fs.DurationLong("session-idle", 30*time.Minute, "Close sessions idle for this long")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LOTTO_CHECKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize analyzer based on type
	var analyzer scanning.Analyzer
	var err error
	switch *scannerType {
	case "gemini", "gemini-classic":
		apiKey := geminiAPIKey(*geminiKey)
		if apiKey == "" {
			slog.Warn("No Gemini API key configured, every analysis will fail. Set --gemini-key, GEMINI_API_KEY or API_KEY")
		}
		slog.Info("Initializing Gemini analyzer...", "type", *scannerType, "model", *geminiModel)
		if *scannerType == "gemini" {
			analyzer, err = scanning.NewGemini(scanning.GeminiConfig{
				APIKey:   apiKey,
				Model:    *geminiModel,
				JSONMode: *geminiJSONMode,
			})
		} else {
			analyzer, err = scanning.NewGeminiClassic(apiKey, *geminiModel)
		}
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama analyzer...", "url", *ollamaURL, "model", *ollamaModel)
		analyzer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, gemini-classic or ollama")
		os.Exit(1)
	}
	defer analyzer.Close()

	// Optional scan history
	var recorder flow.Recorder
	var hist web.History
	if *historyDir != "" {
		slog.Info("Initializing scan history...", "dir", *historyDir)
		db, store, err := openHistory(*historyDir)
		if err != nil {
			slog.Error("Failed to initialize scan history", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		svc := history.NewService(db, store)
		recorder, hist = svc, svc
	}

	// Optional server attached camera
	var camera capture.Camera
	if *cameraDevice != "" {
		slog.Info("Using server camera", "device", *cameraDevice, "ffmpeg", *ffmpegPath)
		camera = &capture.FFmpeg{Binary: *ffmpegPath, Device: *cameraDevice}
	}

	sessions := flow.NewManager(func(id string) *flow.Session {
		slog.Info("New session", "session", id)
		return flow.NewSession(id, analyzer, flow.Options{
			Camera:   camera,
			Recorder: recorder,
		})
	}, *sessionIdle)

	basicAuth := web.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := web.NewServer(sessions, hist, basicAuth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, addr)
	})
	g.Go(func() error {
		return sessions.Run(ctx, time.Minute)
	})

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shut down")
}

// geminiAPIKey picks the key from the flag, then GEMINI_API_KEY, then API_KEY
func geminiAPIKey(flagValue string) string {
	for _, key := range []string{flagValue, os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")} {
		if key != "" {
			return key
		}
	}
	return ""
}

func openHistory(dir string) (*history.BoltDB, *history.LocalStorage, error) {
	store, err := history.NewLocalStorage(filepath.Join(dir, "tickets"))
	if err != nil {
		return nil, nil, err
	}
	db, err := history.NewBoltDB(filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, nil, err
	}
	return db, store, nil
}
