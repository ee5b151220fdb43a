package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StrategyHeuristic names the DOM-scoring fallback strategy.
const StrategyHeuristic = "heuristic"

// DefaultMinScore is the score a candidate must reach to be reported at all.
// Below it the locator answers "price not found" rather than guessing.
const DefaultMinScore = 1

const ancestorWindow = 3

var positiveNearby = []string{
	"price", "now", "sale", "final", "current", "your price", "our price",
	"buy", "add to cart",
}

var negativeWords = []string{
	"was", "save", "saving", "strike", "strikethrough", "msrp", "list",
	"coupon", "per month", "discount",
}

var attrHintKeys = []string{"id", "class", "itemprop", "data-test", "data-qa"}

// Locator scores DOM text candidates to find the most plausible price when
// structured data is absent or unusable.
type Locator struct {
	minScore int
}

// NewLocator builds a Locator; minScore <= 0 selects the default threshold.
func NewLocator(minScore int) *Locator {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Locator{minScore: minScore}
}

// signal is one independent scoring factor. Factors are combined by plain
// summation; each returns its own weighted contribution.
type signal struct {
	name  string
	score func(in signalInput) int
}

type signalInput struct {
	node    *goquery.Selection
	rawText string
	value   float64
}

var signals = []signal{
	{name: "attribute-hints", score: scoreAttributeHints},
	{name: "nearby-text", score: scoreNearbyText},
	{name: "negative-context", score: scoreNegativeContext},
	{name: "tag-kind", score: scoreTagKind},
	{name: "value-plausibility", score: scoreValuePlausibility},
}

// Locate returns the top-scoring candidate, or ok=false when no candidate
// clears the threshold. Ties break toward earlier document order, where the
// primary price usually appears before crossed-out or secondary prices.
func (l *Locator) Locate(doc *goquery.Document) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	doc.Find("body *").Each(func(_ int, node *goquery.Selection) {
		text := collapseSpace(directText(node))
		if text == "" {
			return
		}
		raw, value, currency, ok := FindPriceToken(text)
		if !ok {
			return
		}
		candidate := Candidate{
			RawText:   raw,
			Value:     value,
			Currency:  currency,
			SourceTag: sourceTag(node),
		}
		in := signalInput{node: node, rawText: text, value: value}
		for _, sig := range signals {
			candidate.Score += sig.score(in)
		}
		if !found || candidate.Score > best.Score {
			best = candidate
			found = true
		}
	})
	if !found || best.Score < l.minScore {
		return Candidate{}, false
	}
	return best, true
}

// directText collects the node's own text children, skipping nested elements
// so a wrapping container does not duplicate its children's prices.
func directText(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
	}
	return b.String()
}

func sourceTag(node *goquery.Selection) string {
	if strings.Contains(attrBlob(node), "price") {
		return "price-class-attribute"
	}
	return "generic-text-node"
}

func attrBlob(node *goquery.Selection) string {
	var parts []string
	for _, key := range attrHintKeys {
		if v, ok := node.Attr(key); ok {
			parts = append(parts, v)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// scoreAttributeHints rewards price-indicating attribute values on the node
// or its ancestors, with the reward shrinking as the hint moves further away.
func scoreAttributeHints(in signalInput) int {
	score := 0
	if blob := attrBlob(in.node); blob != "" {
		if strings.Contains(blob, "price") {
			score += 3
		}
		for _, w := range []string{"final", "current", "sale"} {
			if strings.Contains(blob, w) {
				score++
				break
			}
		}
	}
	weight := 2
	parent := in.node.Parent()
	for depth := 0; depth < ancestorWindow && parent.Length() > 0; depth++ {
		if strings.Contains(attrBlob(parent), "price") {
			score += weight
			break
		}
		if weight > 1 {
			weight--
		}
		parent = parent.Parent()
	}
	return score
}

// scoreNearbyText rewards price-indicating words in surrounding text, decayed
// by ancestor distance.
func scoreNearbyText(in signalInput) int {
	weight := 2
	parent := in.node.Parent()
	for depth := 0; depth < ancestorWindow && parent.Length() > 0; depth++ {
		near := strings.ToLower(truncate(parent.Text(), 1000))
		for _, w := range positiveNearby {
			if strings.Contains(near, w) {
				return weight
			}
		}
		if weight > 1 {
			weight--
		}
		parent = parent.Parent()
	}
	return 0
}

// scoreNegativeContext penalizes candidates that read like crossed-out,
// savings, or installment amounts.
func scoreNegativeContext(in signalInput) int {
	low := strings.ToLower(in.rawText)
	blob := attrBlob(in.node)
	for _, w := range negativeWords {
		if strings.Contains(low, w) || strings.Contains(blob, w) {
			return -3
		}
	}
	return 0
}

// scoreTagKind prefers emphasized or price-styled elements over prices buried
// in paragraph prose, and strongly penalizes struck-through text.
func scoreTagKind(in signalInput) int {
	switch goquery.NodeName(in.node) {
	case "del", "s", "strike":
		return -3
	case "strong", "b", "em", "ins", "h1", "h2", "h3":
		return 2
	case "span", "td", "dd", "div":
		return 1
	case "p", "li", "small":
		return -1
	default:
		return 0
	}
}

// scoreValuePlausibility penalizes values that rarely show up as real prices.
func scoreValuePlausibility(in signalInput) int {
	score := 0
	if in.value <= 0 {
		score -= 5
	}
	if in.value >= 1_000_000 {
		score -= 3
	}
	cents := in.value * 100
	if diff := cents - float64(int64(cents+0.5)); diff > 1e-6 || diff < -1e-6 {
		score -= 2
	}
	return score
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
