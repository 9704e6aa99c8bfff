// internal/cli/run.go
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jobmesh/harvester/internal/batch"
	"github.com/jobmesh/harvester/internal/config"
	"github.com/jobmesh/harvester/internal/ingest/merge"
	"github.com/jobmesh/harvester/internal/output"
	"github.com/jobmesh/harvester/internal/ui"
	"github.com/jobmesh/harvester/pkg/models"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl all configured organizations and export canonical records",
	Example: `  # Crawl everything in sources.yaml, write JSON to stdout
  harvester run

  # Export to a CSV file with a 2-minute budget per organization
  harvester run -o postings.csv --format csv --org-timeout 2m`,
	RunE: runBatch,
}

func init() {
	config.RegisterRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// summary is the end-of-run report: per-organization outcomes plus merge
// statistics.
type summary struct {
	Results []models.OrgResult `json:"results"`
	Merge   models.MergeStats  `json:"merge"`
	Elapsed time.Duration      `json:"elapsed_ns"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	a := application
	cfg := a.Config
	start := time.Now()

	jobs, err := buildJobs(cmd)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no runnable jobs: no organization declares board_urls or api_slug")
	}

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("harvesting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	runner := batch.New(batch.Options{
		Concurrency: cfg.OrgConcurrency,
		OrgTimeout:  cfg.OrgTimeout,
		OnComplete: func(models.OrgResult) error {
			return bar.Add(1)
		},
	})

	results := runner.Run(cmd.Context(), jobs)
	bar.Finish()

	streams := make([][]models.JobRecord, 0, len(results))
	for _, res := range results {
		if len(res.Records) > 0 {
			streams = append(streams, res.Records)
		}
	}
	canonical, mergeStats := a.Merger.Merge(streams...)
	merge.SortCanonical(canonical)

	if err := export(cfg, canonical); err != nil {
		return err
	}

	sum := summary{Results: results, Merge: mergeStats, Elapsed: time.Since(start)}
	if asJSON, _ := cmd.Flags().GetBool("summary-json"); asJSON {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printSummary(sum)
	return nil
}

// buildJobs expands the sources inventory into fetch jobs: one browser job
// per organization with board URLs, one API job per organization with an API
// slug. The browser pool starts only if at least one browser job exists.
func buildJobs(cmd *cobra.Command) ([]batch.Job, error) {
	a := application
	var jobs []batch.Job
	needBrowser := false

	for _, org := range a.Sources.Organizations {
		if len(org.BoardURLs) > 0 {
			needBrowser = true
		}
	}
	if needBrowser {
		if err := a.EnsureBrowser(cmd.Context()); err != nil {
			return nil, fmt.Errorf("start browser pool: %w", err)
		}
	}

	for _, org := range a.Sources.Organizations {
		if len(org.BoardURLs) > 0 {
			jobs = append(jobs, batch.Job{Org: org, Adapter: a.Crawler, Filter: a.Prefilter})
		}
		if org.APISlug != "" {
			if a.Sources.APIBaseURL == "" {
				log.Warn().Str("org", org.ID).Msg("api_slug set but no api_base_url configured, skipping API fetch")
				continue
			}
			jobs = append(jobs, batch.Job{Org: org, Adapter: a.APIAdapter, Filter: a.Prefilter})
		}
	}
	return jobs, nil
}

func export(cfg *config.Config, records []models.JobRecord) error {
	if cfg.OutputPath == "" {
		if cfg.OutputFormat == "csv" {
			return output.EncodeCSV(os.Stdout, records)
		}
		return output.EncodeJSON(os.Stdout, records)
	}
	if cfg.OutputFormat == "csv" {
		return output.WriteCSV(cfg.OutputPath, records)
	}
	return output.WriteJSON(cfg.OutputPath, records)
}

func printSummary(sum summary) {
	fmt.Fprintf(os.Stderr, "\n%s\n", ui.Header("HARVEST SUMMARY"))

	for _, res := range sum.Results {
		status := ui.Ok("ok")
		detail := fmt.Sprintf("%d records", len(res.Records))
		switch {
		case res.Failed:
			status = ui.Fail("failed")
			detail = string(res.Reason)
			if res.Err != nil {
				detail = fmt.Sprintf("%s: %v", res.Reason, res.Err)
			}
		case res.Reason == models.FailureCallback:
			status = ui.Warn("ok*")
			detail = fmt.Sprintf("%d records, callback failed", len(res.Records))
		}
		fmt.Fprintf(os.Stderr, "  %-20s %-8s %-10s %s %s\n",
			res.Organization, res.Source, status, detail,
			ui.Dim(res.Elapsed.Round(time.Millisecond).String()))
		if res.Stats.BotPages > 0 {
			fmt.Fprintf(os.Stderr, "  %s\n", ui.Warn(fmt.Sprintf("    %d bot challenge page(s) encountered", res.Stats.BotPages)))
		}
	}

	fmt.Fprintf(os.Stderr, "\n  %s %s\n", ui.Header("merge:"), sum.Merge)
	for source, n := range sum.Merge.DescriptionShare {
		fmt.Fprintf(os.Stderr, "    descriptions from %s: %d\n", source, n)
	}
	fmt.Fprintf(os.Stderr, "  %s\n\n", ui.Dim("total "+sum.Elapsed.Round(time.Millisecond).String()))
}
