package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/keyword"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	historyListLimit   int
	historySearchLimit int
	historyFuzzy       bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the query history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent queries, newest first",
	RunE:  runHistoryList,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show success rate and average execution time",
	RunE:  runHistoryStats,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Full-text search over past questions and SQL",
	Long: `Searches past questions and generated SQL. Matches in the question rank higher.
When nothing matches, the search is retried with typo tolerance and a spelling
suggestion is shown.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistorySearch,
}

func init() {
	historyListCmd.Flags().IntVar(&historyListLimit, "limit", 50, "maximum records")
	historySearchCmd.Flags().IntVar(&historySearchLimit, "limit", 20, "maximum records")
	historySearchCmd.Flags().BoolVar(&historyFuzzy, "fuzzy", false, "tolerate typos")

	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historySearchCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		recs, err := c.Store.RecentHistory(cmd.Context(), historyListLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), recs)
		}
		cli.WriteHistory(cmd.OutOrStdout(), recs)
		return nil
	})
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		st, err := c.Store.HistoryStats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), st)
		}
		cli.WriteHistoryStats(cmd.OutOrStdout(), st)
		return nil
	})
}

// historySearchResult is the JSON shape of history search.
type historySearchResult struct {
	Query      string                       `json:"query"`
	DidYouMean string                       `json:"did_you_mean,omitempty"`
	AutoFuzzy  bool                         `json:"auto_fuzzy,omitempty"`
	History    []*models.QueryHistoryRecord `json:"history"`
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		res, err := searchHistory(cmd, c, joinArgs(args))
		if err != nil {
			return err
		}
		return writeHistorySearch(cmd.OutOrStdout(), res)
	})
}

func searchHistory(cmd *cobra.Command, c *Components, q string) (*historySearchResult, error) {
	ctx := cmd.Context()
	opts := &keyword.SearchOptions{QuestionBoost: 2, FuzzyEnabled: historyFuzzy}
	hits, err := c.History.Search(ctx, q, historySearchLimit, opts)
	if err != nil {
		return nil, err
	}
	res := &historySearchResult{Query: q}
	// Retry with fuzzy matching when an exact search finds nothing.
	if len(hits) == 0 && !historyFuzzy {
		opts.FuzzyEnabled = true
		if fuzzy, err := c.History.Search(ctx, q, historySearchLimit, opts); err == nil && len(fuzzy) > 0 {
			hits, res.AutoFuzzy = fuzzy, true
		}
	}
	if len(hits) == 0 {
		if corrected, changed := keyword.NewSpellChecker(c.History).Correct(q); changed {
			res.DidYouMean = corrected
		}
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	res.History, err = c.Store.HistoryByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func writeHistorySearch(w io.Writer, res *historySearchResult) error {
	if jsonOutput {
		return cli.WriteJSON(w, res)
	}
	if res.AutoFuzzy {
		fmt.Fprintln(w, "no exact matches; showing typo-tolerant results")
	}
	if len(res.History) == 0 {
		fmt.Fprintf(w, "no history matches %q\n", res.Query)
		if res.DidYouMean != "" {
			fmt.Fprintf(w, "did you mean: %s\n", res.DidYouMean)
		}
		return nil
	}
	cli.WriteHistory(w, res.History)
	return nil
}
