package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shitsumon/internal/chart"
	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	askNoLexicon  bool
	askNoRAG      bool
	askNoExamples bool
	askChart      bool
	askChartKind  string
	askTopK       int
	askThreshold  float64
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with generated SQL",
	Long: `Normalizes the question with the term lexicon, retrieves related documents and similar
examples, asks the language model for SQL and executes it against the target database.

The question is all remaining arguments joined by spaces.

Examples:
  shitsumon ask 급여가 600만원 이상인 직원
  shitsumon ask --chart "부서별 평균 연봉"
  shitsumon ask --no-rag --json "top 5 customers by total_amount"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Execute SQL directly and log it to the history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExec,
}

func init() {
	askCmd.Flags().BoolVar(&askNoLexicon, "no-lexicon", false, "skip business-term normalization")
	askCmd.Flags().BoolVar(&askNoRAG, "no-rag", false, "skip document retrieval")
	askCmd.Flags().BoolVar(&askNoExamples, "no-examples", false, "skip few-shot examples")
	askCmd.Flags().BoolVar(&askChart, "chart", false, "suggest a chart for the result")
	askCmd.Flags().StringVar(&askChartKind, "chart-kind", "", "force a chart kind: bar, line, pie, scatter or heatmap")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "documents to retrieve (0 = config)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "minimum document similarity (unset = config)")
}

// joinArgs joins positional args so that quoted and unquoted input behave the same.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func off(disabled bool) *bool {
	v := !disabled
	return &v
}

func buildAskRequest(cmd *cobra.Command, args []string) models.AskRequest {
	req := models.AskRequest{
		Question:   joinArgs(args),
		UseLexicon: off(askNoLexicon),
		UseRAG:     off(askNoRAG),
		UseExample: off(askNoExamples),
		Chart:      askChart || askChartKind != "",
		TopK:       askTopK,
	}
	if cmd.Flags().Changed("threshold") {
		t := askThreshold
		req.Threshold = &t
	}
	return req
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := buildAskRequest(cmd, args)
	return withComponents(cmd.Context(), func(c *Components) error {
		a, err := c.Assistant()
		if err != nil {
			return err
		}
		res, err := a.Ask(cmd.Context(), req)
		if err != nil {
			return err
		}
		if askChartKind != "" && res.Success {
			ch, err := chart.Build(res.Result, askChartKind)
			if err != nil {
				fmt.Fprintf(os.Stderr, "chart: %v\n", err)
			} else {
				res.Chart = ch
			}
		}
		if err := cli.WriteAskResult(cmd.OutOrStdout(), res, outputFormat()); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("question not answered")
		}
		return nil
	})
}

func runExec(cmd *cobra.Command, args []string) error {
	query := joinArgs(args)
	return withComponents(cmd.Context(), func(c *Components) error {
		a, err := c.Assistant()
		if err != nil {
			return err
		}
		res, err := a.Execute(cmd.Context(), query)
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), res)
		}
		cli.WriteQueryResult(cmd.OutOrStdout(), res)
		return nil
	})
}
