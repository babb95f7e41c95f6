package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Skufu/GoRehab/internal/catalog"
	"github.com/Skufu/GoRehab/internal/config"
	"github.com/Skufu/GoRehab/internal/engine"
	"github.com/Skufu/GoRehab/internal/httpapi"
	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/platform/logger"
	"github.com/Skufu/GoRehab/internal/policy"
	"github.com/Skufu/GoRehab/internal/profile"
)

const loadTimeout = 30 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rehab-server",
		Short:        "Rehabilitation program recommender",
		SilenceUsage: true,
	}
	serve := serveCmd()
	root.AddCommand(serve, checkCmd(), recommendCmd())
	// No subcommand means serve.
	root.RunE = serve.RunE
	return root
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	rules    *policy.Rules
	provider *kb.Provider
	engine   *engine.Engine
	catalog  *catalog.Catalog
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	rules, err := policy.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	mode, err := engine.ParseMode(cfg.MatchMode)
	if err != nil {
		return nil, err
	}

	provider := kb.NewProvider(func(ctx context.Context) (*kb.Store, error) {
		ctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()
		return kb.Load(ctx, cfg.KBSource, kb.Options{
			DBMaxConns: cfg.DBMaxConns,
			Neo4j: kb.Neo4jAuth{
				User:     cfg.Neo4jUser,
				Password: cfg.Neo4jPassword,
				Database: cfg.Neo4jDatabase,
			},
			Logger: log,
		})
	})

	eng := engine.New(provider, rules,
		engine.WithMode(mode),
		engine.WithLimit(cfg.MaxResults),
		engine.WithLogger(log),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		rules:    rules,
		provider: provider,
		engine:   eng,
		catalog:  catalog.New(provider),
	}, nil
}

// preload builds the knowledge base up front. A failure is logged and the
// server keeps running degraded: /readyz and the API answer 503.
func (a *app) preload(ctx context.Context) {
	if _, err := a.provider.Store(ctx); err != nil {
		a.log.Error().Err(err).Str("source", a.cfg.KBSource).Msg("knowledge base load failed, serving degraded")
	}
}

func (a *app) router() *gin.Engine {
	return httpapi.NewRouter(httpapi.Deps{
		Engine:      a.engine,
		Catalog:     a.catalog,
		Rules:       a.rules,
		Health:      a.provider,
		Logger:      a.log,
		CORSOrigins: a.cfg.CORSOrigins,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	gin.SetMode(ginMode())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	if !cfg.LazyLoad {
		a.preload(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("mode", string(a.engine.Mode())).Bool("lazy", cfg.LazyLoad).Msg("server listening")
	waitForShutdown(server, log)
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the knowledge base and report what was skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			store, err := a.provider.Store(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source: %s\n", store.Source())
			stats := store.Stats()
			for _, k := range kb.Kinds {
				fmt.Fprintf(out, "%-17s %d\n", k, stats[k])
			}
			notices := store.Diagnostics()
			fmt.Fprintf(out, "skipped: %d\n", len(notices))
			for _, n := range notices {
				fmt.Fprintf(out, "  %s\n", n)
			}

			var missing []string
			for _, d := range a.rules.DiagnosisNames() {
				for _, id := range a.rules.ArchetypesFor(d) {
					if c, ok := store.Concept(id); !ok || c.Kind != kb.KindArchetype {
						missing = append(missing, d+": "+id)
					}
				}
			}
			if len(missing) > 0 {
				fmt.Fprintf(out, "unmapped archetypes: %d\n", len(missing))
				for _, m := range missing {
					fmt.Fprintf(out, "  %s\n", m)
				}
			}
			return nil
		},
	}
}

func recommendCmd() *cobra.Command {
	var p profile.Profile
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print recommendations for one profile as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cliApp()
			if err != nil {
				return err
			}
			programs, err := a.engine.FindPrograms(cmd.Context(), p)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(programs)
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.Diagnosis, "diagnosis", "", "Diagnosis name, e.g. stroke")
	f.StringVar(&p.Severity, "severity", "", "mild, medium or severe")
	f.StringVar(&p.AgeGroup, "age", "", "child, adult or elderly")
	f.StringVar(&p.MovementImpairment, "movement", "", "none, mild, moderate, severe or paralysis")
	f.StringVar(&p.Target, "target", "", "Target group, e.g. lower limbs")
	f.StringSliceVar(&p.Goals, "goal", nil, "Rehabilitation goal (repeatable)")
	f.StringSliceVar(&p.Symptoms, "symptom", nil, "Free-text symptom (repeatable)")
	f.StringSliceVar(&p.Conditions, "condition", nil, "Free-text condition (repeatable)")
	return cmd
}

// cliApp wires the app for one-shot commands. Logs go to stderr so stdout
// stays machine readable.
func cliApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return newApp(cfg, logger.NewWithWriter(os.Stderr, cfg.LogLevel))
}

func ginMode() string {
	if m := os.Getenv("GIN_MODE"); m != "" {
		return m
	}
	return gin.ReleaseMode
}

func waitForShutdown(server *http.Server, log zerolog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
