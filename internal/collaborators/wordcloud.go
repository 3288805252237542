package collaborators

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/onnwee/pagelens/backend/internal/coordinator"
)

// WordCloudSVG renders a word-frequency cloud as a standalone SVG. The
// output is deterministic for a given input text, so artifact bytes (and
// their content-hashed storage names) are stable across runs.
type WordCloudSVG struct {
	MaxWords int // default 30
	Width    int
	Height   int
}

func NewWordCloudSVG() *WordCloudSVG {
	return &WordCloudSVG{MaxWords: 30, Width: 800, Height: 600}
}

// Generate produces the artifact bytes from normalized text.
func (g *WordCloudSVG) Generate(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) < 3 || stopwords[w] {
			continue
		}
		counts[w]++
	}

	type wc struct {
		word  string
		count int
	}
	words := make([]wc, 0, len(counts))
	for w, c := range counts {
		words = append(words, wc{w, c})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].count != words[j].count {
			return words[i].count > words[j].count
		}
		return words[i].word < words[j].word
	})

	maxWords := g.MaxWords
	if maxWords <= 0 {
		maxWords = 30
	}
	if len(words) > maxWords {
		words = words[:maxWords]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`, g.Width, g.Height)
	sb.WriteString(`<rect width="100%" height="100%" fill="white"/>`)

	maxCount := 1
	if len(words) > 0 {
		maxCount = words[0].count
	}

	y := 40
	for _, w := range words {
		// Font size scales linearly with relative frequency.
		size := 12 + 36*w.count/maxCount
		if y+size > g.Height {
			break
		}
		fmt.Fprintf(&sb, `<text x="20" y="%d" font-size="%d" font-family="sans-serif">%s</text>`,
			y, size, html.EscapeString(w.word))
		y += size + 6
	}

	sb.WriteString(`</svg>`)
	return []byte(sb.String()), nil
}

var _ coordinator.ArtifactGenerator = (*WordCloudSVG)(nil)
