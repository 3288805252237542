package collaborators

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/onnwee/pagelens/backend/internal/coordinator"
	"github.com/onnwee/pagelens/backend/internal/fetchguard"
)

// HTMLExtractor extracts normalized visible text from fetched HTML.
// Normalization collapses all whitespace runs to single spaces so that
// two documents rendering identical text produce identical output (and
// therefore share one content-addressed analysis key).
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract returns the normalized text of content. Non-HTML content is
// passed through with the same whitespace normalization.
func (e *HTMLExtractor) Extract(ctx context.Context, content *fetchguard.RawContent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !strings.Contains(content.ContentType, "html") {
		return normalize(string(content.Body)), nil
	}

	doc, err := html.Parse(bytes.NewReader(content.Body))
	if err != nil {
		// Tolerate malformed markup the way browsers do; fall back to
		// the raw bytes.
		return normalize(string(content.Body)), nil
	}

	var sb strings.Builder
	collectText(doc, &sb)
	return normalize(sb.String()), nil
}

// collectText walks the DOM gathering text nodes, skipping elements that
// never render.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "head", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ coordinator.TextExtractor = (*HTMLExtractor)(nil)
