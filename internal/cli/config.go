package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/akshayaggarwal99/seobridge/internal/cache"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		validErr := cfg.Validate()
		r := cfg.Redacted()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		rows := [][2]string{
			{"api.base_url", r.API.BaseURL},
			{"api.token", r.API.Token},
			{"api.timeout", r.API.Timeout.String()},
			{"rate_limit.max_per_window", strconv.Itoa(r.RateLimit.MaxPerWindow)},
			{"rate_limit.window", r.RateLimit.Window.String()},
			{"cache.backend", r.Cache.Backend},
			{"cache.ttl", r.Cache.TTL.String()},
			{"cache.max_entries", strconv.Itoa(r.Cache.MaxEntries)},
		}
		if r.Cache.Backend == "redis" {
			rows = append(rows,
				[2]string{"cache.redis.addr", r.Cache.Redis.Addr},
				[2]string{"cache.redis.password", r.Cache.Redis.Password},
				[2]string{"cache.redis.db", strconv.Itoa(r.Cache.Redis.DB)},
				[2]string{"cache.redis.prefix", r.Cache.Redis.Prefix},
			)
		}
		rows = append(rows,
			[2]string{"log.level", r.Log.Level},
			[2]string{"log.json", strconv.FormatBool(r.Log.JSON)},
			[2]string{"cache backends", fmt.Sprint(cache.Backends())},
		)
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
		}
		w.Flush()

		if validErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nConfiguration is not usable: %v\n", validErr)
		}
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
}
