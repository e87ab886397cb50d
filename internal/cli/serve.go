package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/akshayaggarwal99/seobridge/internal/seoapi/seoapitest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	port         string
	fixturesPath string
	fakeToken    string
)

var serveCmd = &cobra.Command{
	Use:   "fake-api",
	Short: "Serve a scripted fake of the SEO data API",
	Long: `Serve a local fake of the SEO data API for development.

Each method answers from a YAML fixtures file:

  SerpstatDomainProcedure.getDomainsInfo:
    result: {data: [{domain: example.com, visible: 1.5}]}
  SerpstatDomainProcedure.getDomainKeywords:
    error: "Domain not found"
  SerpstatBacklinksProcedure.getSummary:
    status: 500
    body: boom

Point the client at it with --base-url http://localhost:<port>/v4.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixtures, err := loadFixtures(fixturesPath)
		if err != nil {
			return err
		}
		return runFakeAPI(cmd.Context(), fixtures)
	},
}

// fixture scripts one method. The first field set wins: status, error, result.
type fixture struct {
	Result any    `yaml:"result"`
	Error  string `yaml:"error"`
	Status int    `yaml:"status"`
	Body   string `yaml:"body"`
}

func (f fixture) handler() seoapitest.Handler {
	switch {
	case f.Status != 0:
		return seoapitest.Status(f.Status, f.Body)
	case f.Error != "":
		return seoapitest.Error(f.Error)
	default:
		return seoapitest.Result(f.Result)
	}
}

func loadFixtures(path string) (map[string]fixture, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var fixtures map[string]fixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	return fixtures, nil
}

func runFakeAPI(ctx context.Context, fixtures map[string]fixture) error {
	api := seoapitest.NewAPI(fakeToken)
	for method, f := range fixtures {
		api.Handle(method, f.handler())
	}
	log.Info().Int("methods", len(fixtures)).Str("port", port).Msg("Starting fake API")

	e := api.Echo()

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("endpoint", "http://localhost:"+port+"/v4").Msg("Fake API listening")
		serverErr <- e.Start(":" + port)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		log.Info().Int("calls", len(api.Calls())).Msg("Fake API stopped")
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("fake API failed: %w", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&port, "port", "8080", "HTTP server port")
	serveCmd.Flags().StringVarP(&fixturesPath, "fixtures", "f", "", "YAML file mapping methods to canned replies")
	serveCmd.Flags().StringVar(&fakeToken, "accept-token", "dev-token", "Token the fake accepts")
	RootCmd.AddCommand(serveCmd)
}
