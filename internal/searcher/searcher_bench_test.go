package searcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/gocontext-search/internal/fusion"
	"github.com/dshills/gocontext-search/internal/reranker"
	"github.com/dshills/gocontext-search/pkg/types"
)

// benchCorpus generates n small Go-like files plus a few documentation pages
func benchCorpus(n int) []corpusFile {
	files := make([]corpusFile, 0, n+3)
	for i := 0; i < n; i++ {
		files = append(files, corpusFile{
			path:        fmt.Sprintf("pkg/mod%03d/handler.go", i),
			contentType: types.ContentCode,
			content: fmt.Sprintf("func HandleRequest%d(ctx context.Context, req *Request) error {\n"+
				"\tif err := validate%d(req); err != nil {\n\t\treturn err\n\t}\n"+
				"\treturn store.Save(ctx, req)\n}\n", i, i),
		})
	}
	for i, topic := range []string{"deployment", "configuration", "authentication"} {
		files = append(files, corpusFile{
			path:        fmt.Sprintf("docs/%d-%s.md", i, topic),
			contentType: types.ContentDocumentation,
			content:     fmt.Sprintf("# %s guide\n\nThis guide explains %s for operators.\n", topic, topic),
		})
	}
	return files
}

func BenchmarkSearchHybrid(b *testing.B) {
	s, _ := setupCorpus(b, benchCorpus(200))
	q := query("HandleRequest42", nil)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchLexicalOnly(b *testing.B) {
	s, _ := setupCorpus(b, benchCorpus(200))
	q := query("validate", func(o *types.Options) { o.UseSemantic = false })
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchSemanticOnly(b *testing.B) {
	s, _ := setupCorpus(b, benchCorpus(200))
	q := query("how to configure authentication", func(o *types.Options) { o.UseLexical = false })
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchReranked(b *testing.B) {
	s, _ := setupCorpus(b, benchCorpus(200), WithReranker(reranker.NewStage(reranker.NewLocalReranker())))
	q := query("HandleRequest42", func(o *types.Options) { o.UseReranker = true })
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, q); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFuse(b *testing.B) {
	for _, n := range []int{50, 200, 500} {
		b.Run(fmt.Sprintf("%03d_candidates", n), func(b *testing.B) {
			lex := lexCandidates(n)
			ids := make([]string, n)
			for i := range ids {
				ids[i] = fmt.Sprintf("lex-%02d", (i*7)%n)
			}
			sem := semCandidates(ids...)
			inputs := []fusion.Input{
				{Stage: types.StageLexical, Weight: 0.5, Candidates: lex},
				{Stage: types.StageSemantic, Weight: 0.5, Candidates: sem},
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := fusion.Fuse(inputs, n, fusion.NormalizeMinMax); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
