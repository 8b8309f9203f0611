package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	termCategory    string
	termSynonyms    []string
	termDescription string
	termSearch      string
)

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Manage the business-term lexicon",
	Long: `Business terms map the words people use (급여, 연봉, 매출) to the technical names
in the database (salary, total_amount). Questions are normalized with them before SQL is
generated.`,
}

var termsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List term mappings",
	RunE:  runTermsList,
}

var termsAddCmd = &cobra.Command{
	Use:   "add <business-term> <technical-term>",
	Short: "Add a term mapping",
	Example: `  shitsumon terms add 급여 salary --synonym 연봉 --synonym 월급 --category hr
  shitsumon terms add "total sales" total_amount`,
	Args: cobra.ExactArgs(2),
	RunE: runTermsAdd,
}

var termsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a term mapping",
	Args:  cobra.ExactArgs(1),
	RunE:  runTermsDelete,
}

var termsNormalizeCmd = &cobra.Command{
	Use:   "normalize <question>",
	Short: "Show how a question is normalized",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTermsNormalize,
}

var termsUnknownCmd = &cobra.Command{
	Use:   "unknown <question>",
	Short: "List words of a question that no mapping covers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTermsUnknown,
}

var termsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import term mappings from CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runTermsImport,
}

var termsExportCmd = &cobra.Command{
	Use:   "export [file.csv]",
	Short: "Export term mappings as CSV (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTermsExport,
}

var termsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the built-in Korean business term mappings",
	RunE:  runTermsSeed,
}

func init() {
	termsListCmd.Flags().StringVar(&termCategory, "category", "", "only this category")
	termsListCmd.Flags().StringVar(&termSearch, "search", "", "substring of business term, technical term or description")
	termsAddCmd.Flags().StringVar(&termCategory, "category", "", "category")
	termsAddCmd.Flags().StringSliceVar(&termSynonyms, "synonym", nil, "synonym (repeatable)")
	termsAddCmd.Flags().StringVar(&termDescription, "description", "", "description")
	termsExportCmd.Flags().StringVar(&termCategory, "category", "", "only this category")

	termsCmd.AddCommand(termsListCmd, termsAddCmd, termsDeleteCmd, termsNormalizeCmd,
		termsUnknownCmd, termsImportCmd, termsExportCmd, termsSeedCmd)
}

func runTermsList(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		var (
			terms []*models.TermMapping
			err   error
		)
		if termSearch != "" {
			terms, err = c.Terms.Search(cmd.Context(), termSearch, termCategory)
		} else {
			terms, err = c.Terms.List(cmd.Context(), termCategory)
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), terms)
		}
		cli.WriteTerms(cmd.OutOrStdout(), terms)
		return nil
	})
}

func runTermsAdd(cmd *cobra.Command, args []string) error {
	t := &models.TermMapping{
		BusinessTerm:  strings.TrimSpace(args[0]),
		TechnicalTerm: strings.TrimSpace(args[1]),
		Synonyms:      models.StringList(termSynonyms),
		Category:      termCategory,
		Description:   termDescription,
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		if err := c.Terms.Add(cmd.Context(), t); err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added term %d: %s → %s\n", t.ID, t.BusinessTerm, t.TechnicalTerm)
		return nil
	})
}

func runTermsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid term id %q", args[0])
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		if err := c.Terms.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted term %d\n", id)
		return nil
	})
}

func runTermsNormalize(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	return withComponents(cmd.Context(), func(c *Components) error {
		normalized, mappings := c.Lexicon.Normalize(question)
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.WriteJSON(out, map[string]interface{}{
				"original":   question,
				"normalized": normalized,
				"mappings":   mappings,
			})
		}
		fmt.Fprintln(out, normalized)
		for _, m := range mappings {
			fmt.Fprintf(out, "  %s → %s\n", m.Original, m.Replacement)
		}
		return nil
	})
}

func runTermsUnknown(cmd *cobra.Command, args []string) error {
	question := joinArgs(args)
	return withComponents(cmd.Context(), func(c *Components) error {
		unknown := c.Lexicon.DetectUnknownTerms(question)
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.WriteJSON(out, unknown)
		}
		if len(unknown) == 0 {
			fmt.Fprintln(out, "every term is known")
			return nil
		}
		rows := make([][]string, 0, len(unknown))
		for _, u := range unknown {
			rows = append(rows, []string{u.Term, strings.Join(u.Suggestions, ", ")})
		}
		cli.WriteTable(out, []string{"Term", "Did you mean"}, rows)
		return nil
	})
}

func runTermsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Terms.ImportCSV(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d term(s)\n", n)
		return nil
	})
}

func runTermsExport(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		if len(args) == 0 {
			return c.Terms.ExportCSV(cmd.Context(), cmd.OutOrStdout(), termCategory)
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := c.Terms.ExportCSV(cmd.Context(), f, termCategory); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}

func runTermsSeed(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Terms.SeedDefaults(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d default term(s)\n", n)
		return nil
	})
}
