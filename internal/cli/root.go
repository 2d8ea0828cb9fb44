// Package cli implements the chatcore command line: the HTTP server, an
// interactive chat and tool catalogue commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"goa.design/clue/log"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/internal/config"
	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/providers"
	"github.com/inspirepan/chatcore/registry"
	"github.com/inspirepan/chatcore/tools"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

// app carries the state shared by every command.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logCtx  context.Context

	// providerFactory builds the model provider; tests replace it.
	providerFactory func(cfg config.Config) orchestrator.ProviderFactory
}

func defaultProviderFactory(cfg config.Config) orchestrator.ProviderFactory {
	return func(model string) (chatcore.Provider, error) {
		return providers.New(cfg.Provider.Name, model, cfg.ProviderOptions())
	}
}

// NewRootCmd returns the chatcore root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{providerFactory: defaultProviderFactory})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatcore",
		Short:         "Streaming chat client with mention-selected tools",
		Version:       fmt.Sprintf("%s (commit: %s)", appVersion, appCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	a.v = config.New("")
	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./chatcore.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.String("log-format", "terminal", "log format: terminal or json")
	pf.String("provider", "", "model provider: "+fmt.Sprint(providers.Names()))
	pf.String("model", "", "model name")

	_ = a.v.BindPFlag("log.debug", pf.Lookup("debug"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("provider.name", pf.Lookup("provider"))
	_ = a.v.BindPFlag("provider.model", pf.Lookup("model"))

	root.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newToolsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load reads the configuration (flags > env > file > defaults) and sets
// up the logger.
func (a *app) load(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logCtx = newLogContext(cmd.Context(), cfg.Log, cmd.ErrOrStderr())
	if cfg.File != "" {
		log.Debugf(a.logCtx, "config loaded from %s", cfg.File)
	}
	return nil
}

func newLogContext(parent context.Context, c config.Log, w io.Writer) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	format := log.FormatTerminal
	if c.Format == "json" {
		format = log.FormatJSON
	}
	opts := []log.LogOption{log.WithFormat(format), log.WithOutput(w)}
	if c.Debug {
		opts = append(opts, log.WithDebug())
	}
	return log.Context(parent, opts...)
}

// newRegistry registers the built-in tools configured by cfg.
func newRegistry(cfg config.Config, opts ...registry.Option) (*registry.Registry, error) {
	reg := registry.New(opts...)
	err := tools.RegisterBuiltins(reg, tools.Options{
		Weather: tools.WeatherConfig{RequestsPerSecond: cfg.Tools.WeatherRPS},
	})
	if err != nil {
		return nil, fmt.Errorf("register built-in tools: %w", err)
	}
	return reg, nil
}
