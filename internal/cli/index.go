package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <path>",
		Short: "Index a file or directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			stats, err := a.Index(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %s\n", path)
			fmt.Fprintf(out, "  files indexed:  %d\n", stats.FilesIndexed)
			fmt.Fprintf(out, "  files skipped:  %d (unchanged)\n", stats.FilesSkipped)
			fmt.Fprintf(out, "  files failed:   %d\n", stats.FilesFailed)
			fmt.Fprintf(out, "  items created:  %d\n", stats.ItemsCreated)
			fmt.Fprintf(out, "  vectors stored: %d\n", stats.VectorsStored)
			if stats.EmbeddingFailures > 0 {
				fmt.Fprintf(out, "  embedding failures: %d (keyword search only until re-indexed)\n", stats.EmbeddingFailures)
			}
			fmt.Fprintf(out, "  duration:       %s\n", stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
			}
			return nil
		},
	}
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			status, err := a.Storage.GetStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database:   %s\n", cfg.DBPath)
			fmt.Fprintf(out, "Sources:    %d\n", status.SourcesCount)
			fmt.Fprintf(out, "Items:      %d\n", status.ItemsCount)
			fmt.Fprintf(out, "Embeddings: %d\n", status.EmbeddingsCount)
			fmt.Fprintf(out, "Size:       %.2f MB\n", status.IndexSizeMB)
			if !status.LastIndexedAt.IsZero() {
				fmt.Fprintf(out, "Indexed at: %s\n", status.LastIndexedAt.Format(time.RFC3339))
			}
			for _, m := range status.Models {
				fmt.Fprintf(out, "Model:      %s/%s dim=%d (%d vectors)\n", m.Provider, m.Model, m.Dimension, m.Count)
			}
			if status.Health.MixedModels {
				fmt.Fprintln(out, "Warning:    vectors from more than one embedding model are stored; re-index to unify")
			}
			return nil
		},
	}
}
