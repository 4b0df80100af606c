package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/apidoc"
	"github.com/leslieo2/agent-summarizer/internal/app"
	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/security"
	"github.com/leslieo2/agent-summarizer/internal/server"
)

type rootOptions struct {
	configFile string
	envFile    string
	flags      config.CLIFlags
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           constants.ServiceName,
		Short:         "Meeting summarizer agent service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before configuration")
	bindConfigFlags(pf, &opts.flags)

	root.AddCommand(
		newServeCommand(opts),
		newCheckCommand(opts),
		newKeygenCommand(opts),
		newSampleCommand(),
		newVersionCommand(),
	)
	return root
}

func bindConfigFlags(fs *pflag.FlagSet, flags *config.CLIFlags) {
	flags.Flags = fs
	flags.Host = fs.String("host", "0.0.0.0", "Host to bind the HTTP server to")
	flags.Port = fs.StringP("port", "p", "8002", "Port to run the HTTP server on")
	flags.MetricsPort = fs.String("metrics-port", "9090", "Port to run the metrics server on")
	flags.ShutdownTimeout = fs.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	flags.Environment = fs.String("environment", "development", "Deployment environment reported by health checks")
	flags.OpenAIModel = fs.String("model", "gpt-4", "Chat completion model")
	flags.OpenAIBaseURL = fs.String("openai-base-url", "https://api.openai.com/v1", "Generation backend base URL")
	flags.RedisURL = fs.String("redis-url", "", "Event bus connection string (redis://...)")
	flags.InstructionsFile = fs.String("instructions-file", "", "File overriding the agent system instructions")
	flags.LogLevel = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.TracingEnabled = fs.Bool("tracing-enabled", false, "Export OpenTelemetry spans to stdout")
	flags.AuthEnabled = fs.Bool("auth-enabled", false, "Enable API key authentication")
	flags.RateLimitEnabled = fs.Bool("rate-limit-enabled", false, "Enable rate limiting")
	flags.RateLimitRPS = fs.Int("rate-limit-rps", 100, "Global rate limit requests per second")
	flags.HotReload = fs.Bool("hot-reload", true, "Reload the instructions file when it changes")
}

// loadConfig resolves configuration: flags > environment (.env included) > file > defaults.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}
	return config.LoadConfig(o.configFile, &o.flags)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			c.Logger.Error("Failed to release dependencies", zap.Error(err))
		}
	}()

	if cfg.Security.Auth.Enabled {
		c.Logger.Info("API key authentication enabled", zap.Int("keys", len(cfg.Security.Auth.Keys)))
	}
	if cfg.Security.RateLimit.Enabled {
		c.Logger.Info("Rate limiting enabled", zap.String("strategy", cfg.Security.RateLimit.Strategy))
	}

	return server.New(c).Run(ctx)
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run every health probe once and print the report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.HotReload.Enabled = false
			// Keep stdout for the report.
			cfg.Observability.Logging.Output = "stderr"

			c, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.Background()) }()

			report := c.Health.CheckHealth(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Healthy() {
				return fmt.Errorf("service is %s", report.Status)
			}
			return nil
		},
	}
}

func newKeygenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen NAME",
		Short: "Generate an API key and print the configuration snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			authManager := security.NewAuthManager(cfg.Security.Auth, zap.NewNop())
			apiKey, err := authManager.GenerateAPIKey(args[0])
			if err != nil {
				return fmt.Errorf("failed to generate API key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated API key for '%s':\n", apiKey.Name)
			fmt.Fprintf(out, "Key: %s\n", apiKey.Key)
			fmt.Fprintf(out, "Created: %s\n", apiKey.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "\nAdd this to your security configuration:\n")
			fmt.Fprintf(out, "keys:\n")
			fmt.Fprintf(out, "  - key: %s\n", apiKey.Key)
			fmt.Fprintf(out, "    name: %s\n", apiKey.Name)
			fmt.Fprintf(out, "    enabled: true\n")
			return nil
		},
	}
}

func newSampleCommand() *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print an example summarize request body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := apidoc.Load()
			if err != nil {
				return err
			}
			body, err := doc.SampleSummarizeRequest(apidoc.NewSampler(seed))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return err
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", constants.ServiceName, constants.ServiceVersion)
		},
	}
}
