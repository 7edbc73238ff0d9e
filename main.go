// Command memebot is the main entrypoint for the meme bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Validates the bot credential against the directory API.
//   - Connects to the chat gateway, authenticates, and subscribes to every
//     reachable server and text channel.
//   - Answers !meme commands and bot mentions with memegen.link image URLs.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zorium-chat/memebot/bot"
	"github.com/zorium-chat/memebot/config"
	"github.com/zorium-chat/memebot/directory"
	"github.com/zorium-chat/memebot/gateway"
	"github.com/zorium-chat/memebot/memegen"
	"github.com/zorium-chat/memebot/server"
	"github.com/zorium-chat/memebot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot credential missing", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("memebot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	dir := &directory.Client{
		BaseURL:    cfg.DirectoryBaseURL,
		Token:      cfg.BotAPIKey,
		HTTPClient: httpClient,
	}
	cache := memegen.NewCache(&memegen.Client{
		BaseURL:    cfg.MemegenBaseURL,
		HTTPClient: httpClient,
	}, cfg.TemplateCacheTTL)
	router := bot.NewRouter(dir, cache, cfg.MemegenBaseURL)

	session := bot.NewSession(bot.SessionConfig{
		Gateway:     gateway.NewWS(cfg.SocketURL),
		Directory:   dir,
		Router:      router,
		Token:       cfg.BotAPIKey,
		Prefix:      cfg.CommandPrefix,
		Backoff:     &bot.Backoff{Initial: cfg.ReconnectInitialDelay, Max: cfg.ReconnectMaxDelay},
		CallTimeout: cfg.HTTPTimeout,
	})

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup check: an invalid credential is fatal here rather than a
	// silent reconnect loop later.
	startupCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	err = session.Startup(startupCtx)
	cancel()
	if err != nil {
		slog.Error("startup validation failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Best-effort: warm the template catalog so the first command never
	// waits on the provider.
	prefetchCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	if n := cache.Prefetch(prefetchCtx); n > 0 {
		slog.Info("template catalog warmed", slog.Int("templates", n))
	} else {
		slog.Warn("template catalog prefetch failed, will retry on demand")
	}
	cancel()

	// HTTP server (health/ready/status/metrics)
	go func() {
		if err := server.Start(ctx, session, cache, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Gateway connect/auth/subscribe loop; blocks until shutdown.
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("session exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutting down")
}
