package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	schemaBasic        bool
	schemaTable        string
	schemaMeaning      string
	schemaExamples     []string
	schemaTablePurpose string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect the target schema and manage column descriptions",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [table]",
	Short: "Show the schema as the language model sees it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaShow,
}

var schemaDescribeCmd = &cobra.Command{
	Use:   "describe <table> [column] <description>",
	Short: "Describe a column, or a whole table when no column is given",
	Example: `  shitsumon schema describe employees salary "월 급여 (원)" --meaning "급여, 연봉" --example 6500000
  shitsumon schema describe employees "직원 명부" --purpose "HR master data"`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSchemaDescribe,
}

var schemaImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import column descriptions from CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaImport,
}

var schemaExportCmd = &cobra.Command{
	Use:   "export [file.csv]",
	Short: "Export column descriptions as CSV (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaExport,
}

func init() {
	schemaShowCmd.Flags().BoolVar(&schemaBasic, "basic", false, "only tables, columns and types")
	schemaDescribeCmd.Flags().StringVar(&schemaMeaning, "meaning", "", "business meaning of the column")
	schemaDescribeCmd.Flags().StringSliceVar(&schemaExamples, "example", nil, "example value (repeatable)")
	schemaDescribeCmd.Flags().StringVar(&schemaTablePurpose, "purpose", "", "business purpose of the table")

	schemaCmd.AddCommand(schemaShowCmd, schemaDescribeCmd, schemaImportCmd, schemaExportCmd)
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		schemaTable = args[0]
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.WriteJSON(out, c.Schema.Tables())
		}
		if schemaBasic {
			_, err := fmt.Fprint(out, c.Schema.BasicContext())
			return err
		}
		md, err := c.Schema.EnhancedContext(cmd.Context(), schemaTable)
		if err != nil {
			return err
		}
		return cli.RenderMarkdown(out, md, 0)
	})
}

func runSchemaDescribe(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		if len(args) == 2 {
			d := &models.TableDescription{TableName: args[0], Description: args[1], BusinessPurpose: schemaTablePurpose}
			if err := c.Schema.DescribeTable(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "described table %s\n", d.TableName)
			return nil
		}
		d := &models.ColumnDescription{
			TableName:       args[0],
			ColumnName:      args[1],
			Description:     args[2],
			BusinessMeaning: schemaMeaning,
			DataExamples:    models.StringList(schemaExamples),
		}
		if err := c.Schema.DescribeColumn(cmd.Context(), d); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "described column %s.%s\n", d.TableName, d.ColumnName)
		return nil
	})
}

func runSchemaImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Schema.ImportCSV(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d column description(s)\n", n)
		return nil
	})
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		if len(args) == 0 {
			return c.Schema.ExportCSV(cmd.Context(), cmd.OutOrStdout())
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := c.Schema.ExportCSV(cmd.Context(), f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
}
