package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	exampleCategory   string
	exampleDifficulty string
	exampleTags       []string
	exampleSearch     string
	exampleTop        int
	exampleK          int
	exampleThreshold  float64
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage the few-shot example bank",
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List examples, best performing first when searching",
	RunE:  runExamplesList,
}

var examplesAddCmd = &cobra.Command{
	Use:     "add <question> <sql>",
	Short:   "Add a worked question and SQL pair",
	Example: `  shitsumon examples add "부서별 평균 급여" "SELECT department, AVG(salary) FROM employees GROUP BY department" --category aggregation`,
	Args:    cobra.ExactArgs(2),
	RunE:    runExamplesAdd,
}

var examplesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an example",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamplesDelete,
}

var examplesSimilarCmd = &cobra.Command{
	Use:   "similar <question>",
	Short: "Show the examples that would be used for a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExamplesSimilar,
}

var examplesImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import examples from CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamplesImport,
}

var examplesExportCmd = &cobra.Command{
	Use:   "export [file.csv]",
	Short: "Export examples as CSV (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExamplesExport,
}

var examplesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the built-in examples",
	RunE:  runExamplesSeed,
}

var examplesReembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recompute every example embedding, e.g. after switching embedding models",
	RunE:  runExamplesReembed,
}

func init() {
	examplesListCmd.Flags().StringVar(&exampleSearch, "search", "", "substring of question or SQL")
	examplesListCmd.Flags().StringVar(&exampleCategory, "category", "", "only this category")
	examplesListCmd.Flags().IntVar(&exampleTop, "top", 0, "only the N most used")
	examplesAddCmd.Flags().StringVar(&exampleCategory, "category", "", "category")
	examplesAddCmd.Flags().StringVar(&exampleDifficulty, "difficulty", models.DifficultyMedium, "easy, medium or hard")
	examplesAddCmd.Flags().StringSliceVar(&exampleTags, "tag", nil, "tag (repeatable)")
	examplesSimilarCmd.Flags().IntVar(&exampleK, "top-k", 3, "number of examples")
	examplesSimilarCmd.Flags().Float64Var(&exampleThreshold, "threshold", 0.5, "minimum similarity")

	examplesCmd.AddCommand(examplesListCmd, examplesAddCmd, examplesDeleteCmd, examplesSimilarCmd,
		examplesImportCmd, examplesExportCmd, examplesSeedCmd, examplesReembedCmd)
}

func runExamplesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withComponents(ctx, func(c *Components) error {
		var (
			exs []*models.QueryExample
			err error
		)
		switch {
		case exampleTop > 0:
			exs, err = c.Examples.Top(ctx, exampleCategory, exampleTop)
		case exampleSearch != "" || exampleCategory != "":
			exs, err = c.Examples.Search(ctx, exampleSearch, exampleCategory, 0)
		default:
			exs, err = c.Examples.List(ctx)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), exs)
		}
		cli.WriteExamples(cmd.OutOrStdout(), exs)
		return nil
	})
}

func runExamplesAdd(cmd *cobra.Command, args []string) error {
	ex := &models.QueryExample{
		NaturalLanguageQuery: args[0],
		SQLQuery:             args[1],
		QueryCategory:        exampleCategory,
		Difficulty:           exampleDifficulty,
		Tags:                 models.StringList(exampleTags),
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		if err := c.Examples.Add(cmd.Context(), ex); err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), ex)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added example %d\n", ex.ID)
		return nil
	})
}

func runExamplesDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid example id %q", args[0])
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		if err := c.Examples.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted example %d\n", id)
		return nil
	})
}

func runExamplesSimilar(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	return withComponents(cmd.Context(), func(c *Components) error {
		exs, mode, err := c.Examples.FindSimilar(cmd.Context(), question, exampleK, exampleThreshold)
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{"mode": mode, "examples": exs})
		}
		cli.WriteScoredExamples(cmd.OutOrStdout(), exs, mode)
		return nil
	})
}

func runExamplesImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Examples.ImportCSV(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d example(s)\n", n)
		return nil
	})
}

func runExamplesExport(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		if len(args) == 0 {
			return c.Examples.ExportCSV(cmd.Context(), cmd.OutOrStdout())
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := c.Examples.ExportCSV(cmd.Context(), f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}

func runExamplesSeed(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Examples.SeedDefaults(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d default example(s)\n", n)
		return nil
	})
}

func runExamplesReembed(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Examples.Reembed(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d example(s)\n", n)
		return err
	})
}
