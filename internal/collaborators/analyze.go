package collaborators

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/onnwee/pagelens/backend/internal/coordinator"
)

// FrequencyAnalyzer is a lexicon-free stand-in for a real NLP pipeline:
// word frequencies, a leading-sentence summary, naive capitalization
// based entity spotting, and a tiny-lexicon sentiment score. It exists
// so the service runs end to end without ML dependencies.
type FrequencyAnalyzer struct {
	TopWords     int // frequency map size, default 50
	SummaryWords int // summary budget, default 60
}

func NewFrequencyAnalyzer() *FrequencyAnalyzer {
	return &FrequencyAnalyzer{TopWords: 50, SummaryWords: 60}
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "you": true,
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "excellent": true, "best": true,
	"love": true, "happy": true, "success": true, "win": true,
	"improve": true, "better": true, "benefit": true, "positive": true,
}

var negativeWords = map[string]bool{
	"bad": true, "worst": true, "terrible": true, "hate": true,
	"fail": true, "failure": true, "lose": true, "problem": true,
	"worse": true, "risk": true, "negative": true, "crisis": true,
}

// Analyze is a pure function of the normalized text.
func (a *FrequencyAnalyzer) Analyze(ctx context.Context, text string) (*coordinator.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	counts := make(map[string]int)
	entitySet := make(map[string]bool)
	var pos, neg int

	for i, w := range words {
		clean := strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if clean == "" {
			continue
		}

		if !stopwords[clean] {
			counts[clean]++
		}
		if positiveWords[clean] {
			pos++
		}
		if negativeWords[clean] {
			neg++
		}

		// Mid-sentence capitalized tokens are treated as entities.
		first, _ := utf8.DecodeRuneInString(w)
		if i > 0 && len(w) > 1 && unicode.IsUpper(first) && !endsSentence(words[i-1]) {
			entitySet[strings.TrimFunc(w, unicode.IsPunct)] = true
		}
	}

	topWords := a.TopWords
	if topWords <= 0 {
		topWords = 50
	}
	frequencies := topN(counts, topWords)

	summaryWords := a.SummaryWords
	if summaryWords <= 0 {
		summaryWords = 60
	}
	if len(words) < summaryWords {
		summaryWords = len(words)
	}

	entities := make([]string, 0, len(entitySet))
	for e := range entitySet {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	var sentiment float64
	if pos+neg > 0 {
		sentiment = float64(pos-neg) / float64(pos+neg)
	}

	return &coordinator.AnalysisResult{
		Sentiment:   sentiment,
		Summary:     strings.Join(words[:summaryWords], " "),
		Entities:    entities,
		Frequencies: frequencies,
		WordCount:   len(words),
	}, nil
}

var _ coordinator.Analyzer = (*FrequencyAnalyzer)(nil)

func endsSentence(w string) bool {
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}

// topN keeps the n most frequent words, preferring alphabetical order on
// equal counts so results stay deterministic.
func topN(counts map[string]int, n int) map[string]int {
	type wc struct {
		word  string
		count int
	}
	all := make([]wc, 0, len(counts))
	for w, c := range counts {
		all = append(all, wc{w, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})

	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]int, len(all))
	for _, e := range all {
		out[e.word] = e.count
	}
	return out
}
