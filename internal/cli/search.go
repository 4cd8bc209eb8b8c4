package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/gocontext-search/internal/config"
	"github.com/dshills/gocontext-search/pkg/types"
)

type searchOptions struct {
	limit      int
	candidates int
	lexical    bool
	semantic   bool
	rerank     bool
	explain    bool
	jsonOutput bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Example: `  gocontext search searchKnowledgeGraphUnified
  gocontext search "how to configure GPU embeddings" --rerank --explain
  gocontext search "retry backoff" --lexical=false --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			q := types.Query{
				Text:    strings.Join(args, " "),
				Options: opts.toOptions(cmd, cfg),
			}
			resp, err := a.Searcher.Search(cmd.Context(), q)
			if err != nil {
				var all *types.AllRetrievalUnavailableError
				if errors.As(err, &all) {
					return fmt.Errorf("search failed, no retriever available: %w", err)
				}
				return fmt.Errorf("search failed: %w", err)
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printResponse(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, opts.explain)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", types.DefaultFinalLimit, "Maximum number of results")
	cmd.Flags().IntVar(&opts.candidates, "candidates", types.DefaultCandidateLimit, "Candidates per retriever before fusion")
	cmd.Flags().BoolVar(&opts.lexical, "lexical", true, "Run keyword retrieval")
	cmd.Flags().BoolVar(&opts.semantic, "semantic", true, "Run semantic retrieval")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Rerank the fused head with the configured reranker")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show routing reasoning and match explanations")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}

// toOptions uses config defaults for limits the user did not set
func (o *searchOptions) toOptions(cmd *cobra.Command, cfg config.Config) types.Options {
	opts := types.Options{
		UseLexical:     o.lexical,
		UseSemantic:    o.semantic,
		UseReranker:    o.rerank,
		FinalLimit:     cfg.Search.FinalLimit,
		CandidateLimit: cfg.Search.CandidateLimit,
		Explain:        o.explain,
	}
	if cmd.Flags().Changed("limit") {
		opts.FinalLimit = o.limit
	}
	if cmd.Flags().Changed("candidates") {
		opts.CandidateLimit = o.candidates
	}
	return opts
}

func printResponse(out, errOut io.Writer, resp *types.Response, explain bool) {
	d := resp.Diagnostics
	if d.Degraded {
		fmt.Fprintln(errOut, "warning: results degraded")
	}
	for _, note := range d.Notes {
		fmt.Fprintf(errOut, "note: %s\n", note)
	}

	if explain {
		r := resp.Routing
		fmt.Fprintf(out, "query type: %s (lexical %.2f, semantic %.2f)\n", r.DetectedType, r.LexicalWeight, r.SemanticWeight)
		if r.Reasoning != "" {
			fmt.Fprintf(out, "reasoning: %s\n", r.Reasoning)
		}
		fmt.Fprintln(out)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found")
		return
	}

	for _, r := range resp.Results {
		fmt.Fprintf(out, "%2d. %s  %.3f  [%s]\n", r.Rank, r.Path, r.Score, r.SearchMethod)
		if explain && r.Explanation != nil {
			e := r.Explanation
			fmt.Fprintf(out, "    exact=%d (%.1f) definition=%d (%.1f) terms=%.2f filename=%.1f %v\n",
				e.ExactMatches, e.ExactScore, e.DefinitionMatches, e.DefinitionScore,
				e.TermScore, e.FilenameScore, e.MatchedTerms)
		}
	}
	fmt.Fprintf(out, "\n%d results in %.1fms\n", len(resp.Results), resp.Timings.TotalMS)
}
