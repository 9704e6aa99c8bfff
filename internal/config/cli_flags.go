package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json-log", false, "Emit logs as JSON instead of console format")
	cmd.PersistentFlags().String("proxy", "", "HTTP/SOCKS5 proxy for browser and API traffic")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("sources", DefaultSourcesFile, "Path to the sources YAML file")
	cmd.PersistentFlags().String("cache-file", DefaultCacheFile, "Path to the last-successful-URL cache")
}

// RegisterRunFlags registers flags specific to the run command
func RegisterRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "Export path (default: stdout)")
	cmd.Flags().String("format", DefaultOutputFormat, "Export format: json or csv")
	cmd.Flags().String("org-timeout", DefaultOrgTimeout.String(), "Wall-clock budget per organization")
	cmd.Flags().Int("concurrency", DefaultFetchConcurrency, "Maximum simultaneous description fetches")
	cmd.Flags().Int("max-pages", DefaultMaxPages, "Pagination ceiling per board")
	cmd.Flags().Bool("headful", false, "Run Chrome with a visible window")
	cmd.Flags().Bool("summary-json", false, "Print the batch summary as JSON")
}
