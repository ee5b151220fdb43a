package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocateFindsPriceClassSpan(t *testing.T) {
	doc := docFrom(t, `<html><body>
<p>Welcome to the shop, we have many fine things.</p>
<span class="price">$24.95</span>
<p>Shipping calculated at checkout.</p>
</body></html>`)

	candidate, ok := NewLocator(0).Locate(doc)
	require.True(t, ok)
	require.InDelta(t, 24.95, candidate.Value, 1e-9)
	require.Equal(t, "USD", candidate.Currency)
	require.Equal(t, "price-class-attribute", candidate.SourceTag)
	require.Positive(t, candidate.Score)
}

func TestLocatePrefersPriceStyledOverProse(t *testing.T) {
	doc := docFrom(t, `<html><body>
<p>As seen in our catalog for $99.00 last season.</p>
<div class="product-price current">$79.00</div>
</body></html>`)

	candidate, ok := NewLocator(0).Locate(doc)
	require.True(t, ok)
	require.InDelta(t, 79.0, candidate.Value, 1e-9)
}

func TestLocatePenalizesStruckOutPrice(t *testing.T) {
	doc := docFrom(t, `<html><body><div class="pricing">
<del>$49.99</del>
<span class="price">$39.99</span>
</div></body></html>`)

	candidate, ok := NewLocator(0).Locate(doc)
	require.True(t, ok)
	require.InDelta(t, 39.99, candidate.Value, 1e-9)
}

func TestLocatePenalizesSavingsAmounts(t *testing.T) {
	doc := docFrom(t, `<html><body>
<span class="savings">Save $20.00</span>
<span class="price">$59.99</span>
</body></html>`)

	candidate, ok := NewLocator(0).Locate(doc)
	require.True(t, ok)
	require.InDelta(t, 59.99, candidate.Value, 1e-9)
}

func TestLocateTieBreaksOnDocumentOrder(t *testing.T) {
	doc := docFrom(t, `<html><body>
<span class="price">$10.00</span>
<span class="price">$20.00</span>
</body></html>`)

	candidate, ok := NewLocator(0).Locate(doc)
	require.True(t, ok)
	require.InDelta(t, 10.0, candidate.Value, 1e-9)
}

func TestLocateRequiresCurrencyAdjacency(t *testing.T) {
	doc := docFrom(t, `<html><body>
<p>Serial number 12345 shipped in 3.5 days.</p>
</body></html>`)

	_, ok := NewLocator(0).Locate(doc)
	require.False(t, ok)
}

func TestLocateThresholdRejectsWeakCandidates(t *testing.T) {
	// A price buried in paragraph prose with no hints anywhere scores below
	// a high threshold, reporting "not found" rather than guessing.
	doc := docFrom(t, `<html><body><article><p>It cost him $5.00 once.</p></article></body></html>`)

	_, ok := NewLocator(5).Locate(doc)
	require.False(t, ok)
}

func TestLocateEmptyDocument(t *testing.T) {
	doc := docFrom(t, `<html><body></body></html>`)
	_, ok := NewLocator(0).Locate(doc)
	require.False(t, ok)
}

func TestScoreValuePlausibility(t *testing.T) {
	require.Negative(t, scoreValuePlausibility(signalInput{value: 2_500_000}))
	require.Negative(t, scoreValuePlausibility(signalInput{value: 9.999}))
	require.Zero(t, scoreValuePlausibility(signalInput{value: 19.99}))
	require.Zero(t, scoreValuePlausibility(signalInput{value: 1299}))
}

func TestScoreNegativeContext(t *testing.T) {
	doc := docFrom(t, `<span class="was-price">$10</span>`)
	node := doc.Find("span")
	require.Negative(t, scoreNegativeContext(signalInput{node: node, rawText: "$10"}))
	require.Negative(t, scoreNegativeContext(signalInput{node: doc.Find("nothing"), rawText: "was $10"}))
	require.Zero(t, scoreNegativeContext(signalInput{node: doc.Find("nothing"), rawText: "$10"}))
}
