package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/catalog"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/config"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/episodemap"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/indexer"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/mapping"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/onlinemeta"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/pvr"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/query"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/special"
	"github.com/WarheadTaylor/AnimeSonarrProxy/internal/torznab"
	"github.com/WarheadTaylor/AnimeSonarrProxy/pkg/nyaaclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// services bundles every wired collaborator the serve command runs. The standalone
// subcommands (catalog refresh, cache clear) do not use it; each builds only the one
// dependency it needs.
type services struct {
	cfg *config.Config
	log *slog.Logger

	idx      *indexer.Client
	cat      *catalog.Catalog
	epMap    *episodemap.Client
	meta     *onlinemeta.Client
	pvr      *pvr.Client
	resolver *mapping.Resolver
	planner  *query.Planner
	special  *special.Resolver
}

func buildServices(cfg *config.Config, log *slog.Logger) *services {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	raw := nyaaclient.New("nyaa", cfg.NyaaURL, httpClient)
	idx := indexer.New(raw,
		indexer.WithLogger(log),
		indexer.WithEnglishOnly(cfg.NyaaEnglishOnly),
		indexer.WithTrustedOnly(cfg.NyaaTrustedOnly),
	)

	cat := catalog.New(
		cfg.AnimeDBURL,
		filepath.Join(cfg.DataDir, "anime-offline-database.json"),
		cfg.AnimeDBUpdateInterval,
		catalog.WithLogger(log),
	)

	epMap := episodemap.New(
		cfg.TheXEMURL,
		filepath.Join(cfg.DataDir, "thexem_cache.json"),
		episodemap.WithLogger(log),
	)

	meta := onlinemeta.New(cfg.AnilistAPIURL, cfg.AnilistRateLimit, onlinemeta.WithLogger(log))

	pvrClient := pvr.New(cfg.SonarrURL, cfg.SonarrAPIKey, pvr.WithLogger(log))

	resolver := mapping.New(
		cat, meta,
		filepath.Join(cfg.DataDir, "mappings.json"),
		filepath.Join(cfg.DataDir, "overrides.json"),
		cfg.MappingCacheTTL,
		mapping.WithLogger(log),
	)

	planner := query.New(idx, epMap,
		query.WithLogger(log),
		query.WithFetchLimit(cfg.MaxResultsPerQuery),
	)

	specialResolver := special.New(pvrClient, planner, special.WithLogger(log))

	return &services{
		cfg: cfg, log: log,
		idx: idx, cat: cat, epMap: epMap, meta: meta, pvr: pvrClient,
		resolver: resolver, planner: planner, special: specialResolver,
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	svc := buildServices(cfg, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := svc.cat.Initialize(runCtx); err != nil {
		log.Error("catalog initialize failed", "error", err)
	}

	mux := http.NewServeMux()
	server := torznab.New(
		cfg.APIKey, svc.idx, svc.resolver, svc.planner, svc.special,
		special.SniffSeasonZero,
		torznab.WithLogger(log),
	)
	server.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           logRequests(mux, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.AnimeDBUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := svc.cat.Initialize(gctx); err != nil {
					log.Warn("background catalog refresh failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		log.Info("server starting", "addr", httpServer.Addr, "sonarr_configured", cfg.SonarrConfigured())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case <-gctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return g.Wait()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
