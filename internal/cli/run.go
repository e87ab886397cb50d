package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/akshayaggarwal99/seobridge/internal/harness"
	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
	"github.com/spf13/cobra"
)

var (
	callParams []string
	callDomain string
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Call one API method",
	Long: `Call one API method and print the formatted result.

Params come from the optional JSON object argument, then from each --param
key=value (values are parsed as JSON when possible, otherwise taken as
strings), then from --domain. The command exits non-zero when the call
fails for any reason.`,
	Example: `  seobridge call SerpstatDomainProcedure.getDomainsInfo '{"domains":["example.com"],"se":"g_us"}'
  seobridge call SerpstatDomainProcedure.getDomainKeywords --domain example.com --param se=g_us --param size=10`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := harness.Args{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
				return fmt.Errorf("params must be a JSON object: %w", err)
			}
			if params == nil {
				params = harness.Args{}
			}
		}
		for _, kv := range callParams {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid --param %q: want key=value", kv)
			}
			params[k] = paramValue(v)
		}
		if callDomain != "" {
			params["domain"] = callDomain
		}

		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		h := harness.New(notifier(cmd.ErrOrStderr()))
		res := h.Run(cmd.Context(), invocation(client, args[0], params))
		if err := printResult(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.IsError {
			return errToolFailed
		}
		return nil
	},
}

// invocation is a generic tool call: an optional "domain" argument is
// normalized and every argument is forwarded as a param.
func invocation(client *seoapi.Client, method string, args harness.Args) harness.Invocation {
	return harness.Invocation{
		Label: method,
		Args:  args,
		Validate: func(a harness.Args) error {
			if strings.TrimSpace(method) == "" {
				return harness.Invalid("method", "is required")
			}
			if _, ok := a["domain"]; ok {
				if _, err := a.NormalizeDomain("domain"); err != nil {
					return err
				}
			}
			return nil
		},
		Invoke: func(ctx context.Context, a harness.Args) (*seoapi.Response, error) {
			return client.Call(ctx, method, a.Params())
		},
		Format: harness.FormatJSON,
	}
}

func notifier(stderr io.Writer) harness.Notifier {
	if notify {
		return harness.Notifiers{harness.LogNotifier{}, harness.NewStreamNotifier(stderr)}
	}
	return harness.LogNotifier{}
}

func printResult(w io.Writer, res harness.Result) error {
	if !toolResult {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.ToolResult())
}

// paramValue decodes v as a JSON scalar, array or object, falling back to the
// raw string.
func paramValue(v string) any {
	var out any
	dec := json.NewDecoder(bytes.NewReader([]byte(v)))
	if err := dec.Decode(&out); err != nil || dec.More() {
		return v
	}
	return out
}

func init() {
	callCmd.Flags().StringArrayVarP(&callParams, "param", "p", nil, "Param as key=value (repeatable)")
	callCmd.Flags().StringVarP(&callDomain, "domain", "d", "", "Domain param, normalized to a bare host")
	RootCmd.AddCommand(callCmd)
}
