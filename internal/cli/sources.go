// internal/cli/sources.go
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jobmesh/harvester/internal/ui"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured organizations and how each will be fetched",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := application.Sources

		fmt.Fprintf(os.Stdout, "%s\n", ui.Header("CONFIGURED SOURCES"))
		fmt.Fprintf(os.Stdout, "  priority: %s\n\n", strings.Join(s.SourcePriority, " > "))

		for _, org := range s.Organizations {
			var modes []string
			if len(org.BoardURLs) > 0 {
				modes = append(modes, fmt.Sprintf("browser (%d url candidates)", len(org.BoardURLs)))
			}
			if org.APISlug != "" {
				modes = append(modes, "api")
			}
			fmt.Fprintf(os.Stdout, "  %-20s %s\n", org.ID, strings.Join(modes, ", "))
			for _, u := range org.BoardURLs {
				fmt.Fprintf(os.Stdout, "    %s\n", ui.Dim(u))
			}
		}

		if len(s.TitlePatterns) > 0 {
			fmt.Fprintf(os.Stdout, "\n  title patterns:    %s\n", strings.Join(s.TitlePatterns, ", "))
		}
		if len(s.LocationPatterns) > 0 {
			fmt.Fprintf(os.Stdout, "  location patterns: %s\n", strings.Join(s.LocationPatterns, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
