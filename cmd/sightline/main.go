// Package main provides the Sightline command-line client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightlinehq/sightline/internal/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sightline",
		Short: "Sightline - hybrid multi-modal document search",
		Long: `Sightline searches document collections that carry both visual page
embeddings and text chunk embeddings, with optional late-interaction
reranking.

Run 'sightline search "query"' against a running server.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().String("api-key", "", "API key")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		searchCmd(),
		statsCmd(),
		healthCmd(),
		collectionsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")

	cfg := client.DefaultConfig()
	cfg.BaseURL = server
	cfg.APIKey = apiKey
	return client.New(cfg)
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the document collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			mode, _ := cmd.Flags().GetString("mode")
			noRerank, _ := cmd.Flags().GetBool("no-rerank")
			candidates, _ := cmd.Flags().GetInt("rerank-candidates")
			filterArgs, _ := cmd.Flags().GetStringArray("filter")
			format, _ := cmd.Flags().GetString("format")

			filters, err := parseFilters(filterArgs)
			if err != nil {
				return err
			}

			req := client.SearchRequest{
				Query:            args[0],
				NResults:         n,
				Mode:             mode,
				RerankCandidates: candidates,
				Filters:          filters,
			}
			if noRerank {
				disabled := false
				req.EnableReranking = &disabled
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			resp, err := newClient(cmd).Search(ctx, req)
			if err != nil {
				return err
			}

			if format == "json" {
				return printJSON(resp)
			}
			printSearchResults(resp)
			return nil
		},
	}

	cmd.Flags().IntP("n", "n", 0, "number of results")
	cmd.Flags().String("mode", "", "search mode (hybrid, visual_only, text_only)")
	cmd.Flags().Bool("no-rerank", false, "disable late-interaction reranking")
	cmd.Flags().Int("rerank-candidates", 0, "stage-1 candidate budget per modality")
	cmd.Flags().StringArray("filter", nil, "metadata filter key=value (repeatable)")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show rolling latency statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			resp, err := newClient(cmd).Stats(ctx)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				return printJSON(resp)
			}

			fmt.Printf("Total queries:  %d\n", resp.TotalQueries)
			fmt.Printf("Window size:    %d\n", resp.WindowSize)
			fmt.Printf("Avg total:      %.2f ms\n", resp.AvgTotalMs)
			fmt.Printf("P95 total:      %.2f ms\n", resp.P95TotalMs)
			fmt.Printf("Avg stage 1:    %.2f ms\n", resp.AvgStage1Ms)
			fmt.Printf("Avg stage 2:    %.2f ms\n", resp.AvgStage2Ms)
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			c := newClient(cmd)
			live, err := c.Health(ctx)
			if err != nil {
				return err
			}
			ready, err := c.Ready(ctx)
			if err != nil {
				fmt.Printf("live:  %s (%s)\n", live.Status, live.Version)
				return err
			}

			fmt.Printf("live:  %s (%s)\n", live.Status, live.Version)
			fmt.Printf("ready: %s\n", ready.Status)
			return nil
		},
	}
}

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "Show modality collection info",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			infos, err := newClient(cmd).Collections(ctx)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				return printJSON(infos)
			}

			for name, info := range infos {
				fmt.Printf("%-8s points=%d status=%s\n", name, info.PointsCount, info.Status)
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sightline %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

// parseFilters turns repeated key=value flags into a filter map. Integer
// and boolean values are typed, everything else stays a string.
func parseFilters(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	filters := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", arg)
		}

		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			filters[key] = i
		} else if b, err := strconv.ParseBool(value); err == nil {
			filters[key] = b
		} else {
			filters[key] = value
		}
	}
	return filters, nil
}

func printSearchResults(resp *client.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
	}

	for i, r := range resp.Results {
		line := fmt.Sprintf("%2d. [%s] %s", i+1, r.Modality, r.ID)
		if r.Score != nil {
			line += fmt.Sprintf("  score=%.4f", *r.Score)
		}
		if r.Distance != nil {
			line += fmt.Sprintf("  distance=%.4f", *r.Distance)
		}
		fmt.Println(line)

		if name, ok := r.Metadata["filename"].(string); ok {
			fmt.Printf("      %s\n", name)
		}
	}

	fmt.Printf("\nstage1=%.1fms stage2=%.1fms total=%.1fms reranked=%d dropped=%d\n",
		resp.Stage1TimeMs, resp.Stage2TimeMs, resp.TotalTimeMs,
		resp.RerankedCount, resp.DroppedCount)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
