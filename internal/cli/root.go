package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/akshayaggarwal99/seobridge/internal/config"
	"github.com/akshayaggarwal99/seobridge/internal/ratelimit"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	jsonLog    bool
	configPath string
	token      string
	baseURL    string
	notify     bool
	toolResult bool

	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg *config.Config
)

// errToolFailed is returned when an invocation produced an error result. The
// result text has already been printed.
var errToolFailed = errors.New("tool call failed")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "seobridge",
	Short: "SEO data API tool bridge",
	Long: `seobridge exposes the Serpstat-style SEO data API as tool calls.

Every call is validated, rate limited, cached and classified the same way
an agent-facing tool would be. The commands here are for running single
calls and interactive sessions against the API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if token != "" {
			loaded.API.Token = token
		}
		if baseURL != "" {
			loaded.API.BaseURL = baseURL
		}
		if jsonLog {
			loaded.Log.JSON = true
		}
		cfg = loaded

		// Configure logging
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

		if !cfg.Log.JSON {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		} else {
			log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		}

		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(cfg.LogLevel())
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errToolFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// newClient builds an API client from the effective configuration. The cache
// backend must answer a health check before the client is returned.
func newClient(ctx context.Context) (*seoapi.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rc, err := cache.New(cfg.Cache.Backend, cfg.CacheBackend())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Cache.Backend, err)
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Healthy(hctx); err != nil {
		rc.Close()
		return nil, fmt.Errorf("cache backend %s is unhealthy: %w", rc.Name(), err)
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window)
	client, err := seoapi.New(cfg.Client(), seoapi.WithLimiter(limiter), seoapi.WithCache(rc))
	if err != nil {
		rc.Close()
		return nil, err
	}

	log.Debug().
		Str("base_url", cfg.API.BaseURL).
		Str("cache", rc.Name()).
		Int("rate_limit", cfg.RateLimit.MaxPerWindow).
		Dur("window", cfg.RateLimit.Window).
		Msg("API client ready")
	return client, nil
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: "+config.DefaultFile+")")
	RootCmd.PersistentFlags().StringVar(&token, "token", "", "API token (overrides "+config.TokenEnv+")")
	RootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API endpoint")
	RootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "Also write MCP log notifications to stderr")
	RootCmd.PersistentFlags().BoolVar(&toolResult, "tool-result", false, "Print results as MCP tool results")
}
