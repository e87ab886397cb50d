package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/akshayaggarwal99/seobridge/internal/harness"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
	"github.com/spf13/cobra"
)

const maxLineSize = 1 << 20

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run calls read line by line from stdin",
	Long: `Read one call per line as "<method> [params-json]" and print each result.

All lines share one client, so the response cache and the rate limiter
carry over from call to call. Blank lines and lines starting with # are
ignored; "stats" prints cache and limiter counters, "quit" ends the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Fprintln(cmd.ErrOrStderr(), `Ready. Type "<method> [params-json]", "stats" or "quit".`)

		s := &session{
			client:  client,
			harness: harness.New(notifier(cmd.ErrOrStderr())),
			out:     cmd.OutOrStdout(),
		}
		return s.run(cmd, cmd.InOrStdin())
	},
}

type session struct {
	client  *seoapi.Client
	harness *harness.Harness
	out     io.Writer

	calls  int
	failed int
}

func (s *session) run(cmd *cobra.Command, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	for sc.Scan() {
		if err := cmd.Context().Err(); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Interrupt received, closing...")
			break
		}

		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == "quit" || line == "exit":
			return s.finish()
		case line == "stats":
			enc := json.NewEncoder(s.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(s.client.Stats(cmd.Context())); err != nil {
				return err
			}
			continue
		}

		method, rest, _ := strings.Cut(line, " ")
		params, parseErr := parseParams(rest)
		inv := invocation(s.client, method, params)
		if parseErr != nil {
			inv.Validate = func(harness.Args) error { return parseErr }
		}

		res := s.harness.Run(cmd.Context(), inv)
		s.calls++
		if res.IsError {
			s.failed++
		}
		if err := printResult(s.out, res); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return s.finish()
}

// parseParams decodes the params-JSON part of a line. A parse failure is
// returned as a validation error so the harness reports it like any other.
func parseParams(raw string) (harness.Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return harness.Args{}, nil
	}
	var params harness.Args
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return harness.Args{}, harness.Invalid("params", "must be a JSON object: %v", err)
	}
	if params == nil {
		params = harness.Args{}
	}
	return params, nil
}

func (s *session) finish() error {
	if s.failed > 0 {
		return fmt.Errorf("%w: %d of %d calls failed", errToolFailed, s.failed, s.calls)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(replCmd)
}
