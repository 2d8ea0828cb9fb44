package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore/internal/chatapi"
	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/internal/store"
	"github.com/inspirepan/chatcore/internal/telemetry"
	"github.com/inspirepan/chatcore/registry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP server",
		RunE: func(*cobra.Command, []string) error {
			return a.serve(a.logCtx)
		},
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.String("cors-origin", "*", "allowed CORS origin")
	f.String("store", "chatcore.db", "path to the SQLite install store")
	f.Bool("require-install", false, "only resolve mentions of installed tools")
	_ = a.v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = a.v.BindPFlag("server.corsOrigin", f.Lookup("cors-origin"))
	_ = a.v.BindPFlag("store.path", f.Lookup("store"))
	_ = a.v.BindPFlag("tools.requireInstall", f.Lookup("require-install"))
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "chatcore", OTLPEndpoint: cfg.Telemetry.OTLPEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Error(a.logCtx, err, log.KV{K: "msg", V: "telemetry shutdown"})
		}
	}()
	toolObserver, turns, err := telemetry.Global()
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	reg, err := newRegistry(cfg, registry.WithObserver(toolObserver))
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening install store: %w", err)
	}
	defer func() { _ = st.Close() }()

	svc, err := orchestrator.New(orchestrator.Config{
		Registry:       reg,
		Providers:      a.providerFactory(cfg),
		ProviderName:   cfg.Provider.Name,
		DefaultModel:   cfg.Provider.Model,
		SystemPrompt:   cfg.Chat.SystemPrompt,
		Installs:       st,
		RequireInstall: cfg.Tools.RequireInstall,
		TurnTimeout:    cfg.Chat.TurnTimeout,
		ToolTimeout:    cfg.Chat.ToolTimeout,
		MaxSteps:       cfg.Chat.MaxSteps,
		Turns:          turns,
	})
	if err != nil {
		return err
	}
	api := chatapi.New(chatapi.Config{
		Registry:     reg,
		Orchestrator: svc,
		Store:        st,
		ToolTimeout:  cfg.Chat.ToolTimeout,
		CORSOrigin:   cfg.Server.CORSOrigin,
		MaxBody:      cfg.Server.MaxBody,
	})

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.Handler(a.logCtx),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Print(a.logCtx,
			log.KV{K: "msg", V: "HTTP server listening"},
			log.KV{K: "addr", V: cfg.Server.Addr},
			log.KV{K: "provider", V: cfg.Provider.Name},
			log.KV{K: "model", V: cfg.Provider.Model},
			log.KV{K: "tools", V: reg.Len()},
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf(a.logCtx, "shutting down HTTP server at %q", cfg.Server.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}
