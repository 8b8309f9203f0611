package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/indexer"
	"github.com/hyperjump/shitsumon/internal/models"
)

var (
	ingestCategory  string
	ingestForce     bool
	ingestRecursive bool

	docsOffset    int
	docsLimit     int
	docsTopK      int
	docsThreshold float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Extract, chunk, embed and store documents",
	Long: `Ingests files and directories into the document store used for retrieval.

Supported formats: PDF, Word (.docx, .doc), Excel (.xlsx, .xls), plain text and markdown.
Files already stored under the same path are replaced. Unchanged files are skipped
unless --force is given. A failing file in a directory is reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored document chunks",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored document chunks",
	RunE:  runDocsList,
}

var docsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the documents most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsSearch,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

var docsEmbedCmd = &cobra.Command{
	Use:   "embed-missing",
	Short: "Embed chunks that were stored while the embedding backend was unavailable",
	RunE:  runDocsEmbed,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "category recorded for every chunk (default general)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest files that have not changed")
	ingestCmd.Flags().BoolVar(&ingestRecursive, "recursive", true, "descend into subdirectories")

	docsListCmd.Flags().IntVar(&docsOffset, "offset", 0, "skip this many chunks")
	docsListCmd.Flags().IntVar(&docsLimit, "limit", 50, "maximum chunks to list")
	docsSearchCmd.Flags().IntVar(&docsTopK, "top-k", 5, "number of documents")
	docsSearchCmd.Flags().Float64Var(&docsThreshold, "threshold", 0, "minimum similarity (semantic mode only)")

	docsCmd.AddCommand(docsListCmd, docsSearchCmd, docsDeleteCmd, docsEmbedCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	opts := indexer.IngestOptions{Category: ingestCategory, Force: ingestForce}
	ctx := cmd.Context()
	return withComponents(ctx, func(c *Components) error {
		var results []*indexer.IngestResult
		failed := map[string]string{}
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				failed[path] = err.Error()
				continue
			}
			if info.IsDir() {
				dr, err := c.Indexer.IngestDirectory(ctx, path, ingestRecursive, nil, opts)
				if err != nil {
					return err
				}
				results = append(results, dr.Files...)
				for p, msg := range dr.Failed {
					failed[p] = msg
				}
				continue
			}
			r, err := c.Indexer.IngestFile(ctx, path, opts)
			if err != nil {
				logger.Warn("ingest failed", zap.String("path", path), zap.Error(err))
				failed[path] = err.Error()
				continue
			}
			results = append(results, r)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.WriteJSON(out, &indexer.DirectoryResult{Files: results, Failed: failed})
		}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			status := "stored"
			if r.Skipped {
				status = "unchanged"
			}
			rows = append(rows, []string{r.Filename, status, strconv.Itoa(r.Stored), strconv.Itoa(r.Embedded), strconv.FormatInt(r.Replaced, 10)})
		}
		cli.WriteTable(out, []string{"File", "Status", "Chunks", "Embedded", "Replaced"}, rows)
		for p, msg := range failed {
			fmt.Fprintf(out, "failed: %s: %s\n", p, msg)
		}
		if len(results) == 0 && len(failed) > 0 {
			return fmt.Errorf("nothing ingested")
		}
		return nil
	})
}

func runDocsList(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		docs, err := c.Store.ListDocuments(cmd.Context(), docsOffset, docsLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return cli.WriteJSON(cmd.OutOrStdout(), docs)
		}
		cli.WriteDocuments(cmd.OutOrStdout(), docs)
		return nil
	})
}

func runDocsSearch(cmd *cobra.Command, args []string) error {
	q := &models.SearchQuery{Query: joinArgs(args), Limit: docsTopK}
	if cmd.Flags().Changed("threshold") {
		t := docsThreshold
		q.Threshold = &t
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		resp, err := c.Retriever.Search(cmd.Context(), q)
		if err != nil {
			return err
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), resp, outputFormat())
	})
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}
	return withComponents(cmd.Context(), func(c *Components) error {
		if err := c.Store.DeleteDocument(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted document %d\n", id)
		return nil
	})
}

func runDocsEmbed(cmd *cobra.Command, args []string) error {
	return withComponents(cmd.Context(), func(c *Components) error {
		n, err := c.Indexer.EmbedMissing(cmd.Context(), 0)
		fmt.Fprintf(cmd.OutOrStdout(), "embedded %d document(s)\n", n)
		return err
	})
}
