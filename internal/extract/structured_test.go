package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func docFrom(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestStructuredJSONLD(t *testing.T) {
	doc := docFrom(t, `<html><head>
<script type="application/ld+json">
{"@type":"Product","name":"Widget","offers":{"price":"19.99","priceCurrency":"USD"}}
</script>
</head><body></body></html>`)

	price, strategy, ok := Structured(doc)
	require.True(t, ok)
	require.Equal(t, StrategyJSONLD, strategy)
	require.InDelta(t, 19.99, price.Amount, 1e-9)
	require.Equal(t, "USD", price.Currency)
}

func TestStructuredJSONLDVariants(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		want     float64
		currency string
	}{
		{
			"numeric price",
			`{"@type":"Product","offers":{"price":49.5,"priceCurrency":"EUR"}}`,
			49.5, "EUR",
		},
		{
			"offers as list",
			`{"@type":"Product","offers":[{"price":"12.00","priceCurrency":"GBP"},{"price":"99.00"}]}`,
			12, "GBP",
		},
		{
			"top-level list",
			`[{"@type":"BreadcrumbList"},{"@type":"Product","offers":{"price":"7.25","priceCurrency":"USD"}}]`,
			7.25, "USD",
		},
		{
			"graph container",
			`{"@graph":[{"@type":"Product","offers":{"price":"3.10","priceCurrency":"CAD"}}]}`,
			3.10, "CAD",
		},
		{
			"missing currency defaults",
			`{"@type":"Product","offers":{"price":"5.00"}}`,
			5, "USD",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFrom(t, `<script type="application/ld+json">`+tt.block+`</script>`)
			price, strategy, ok := Structured(doc)
			require.True(t, ok)
			require.Equal(t, StrategyJSONLD, strategy)
			require.InDelta(t, tt.want, price.Amount, 1e-9)
			require.Equal(t, tt.currency, price.Currency)
		})
	}
}

func TestStructuredFirstValidBlockWins(t *testing.T) {
	doc := docFrom(t, `
<script type="application/ld+json">{not json at all</script>
<script type="application/ld+json">{"@type":"Product","offers":{"price":"42.00","priceCurrency":"USD"}}</script>
<script type="application/ld+json">{"@type":"Product","offers":{"price":"99.00","priceCurrency":"USD"}}</script>`)

	price, _, ok := Structured(doc)
	require.True(t, ok)
	require.InDelta(t, 42.0, price.Amount, 1e-9)
}

func TestStructuredNegativePriceFallsThrough(t *testing.T) {
	doc := docFrom(t, `
<script type="application/ld+json">{"@type":"Product","offers":{"price":"-5.00","priceCurrency":"USD"}}</script>`)

	_, _, ok := Structured(doc)
	require.False(t, ok)
}

func TestStructuredMetaTags(t *testing.T) {
	t.Run("product price amount with currency", func(t *testing.T) {
		doc := docFrom(t, `<head>
<meta property="product:price:amount" content="34.99">
<meta property="product:price:currency" content="eur">
</head>`)
		price, strategy, ok := Structured(doc)
		require.True(t, ok)
		require.Equal(t, StrategyMeta, strategy)
		require.InDelta(t, 34.99, price.Amount, 1e-9)
		require.Equal(t, "EUR", price.Currency)
	})

	t.Run("og price amount", func(t *testing.T) {
		doc := docFrom(t, `<meta property="og:price:amount" content="12.50">`)
		price, _, ok := Structured(doc)
		require.True(t, ok)
		require.InDelta(t, 12.50, price.Amount, 1e-9)
		require.Equal(t, "USD", price.Currency)
	})

	t.Run("twitter data with symbol", func(t *testing.T) {
		doc := docFrom(t, `<meta name="twitter:data1" content="$8.75">`)
		price, _, ok := Structured(doc)
		require.True(t, ok)
		require.InDelta(t, 8.75, price.Amount, 1e-9)
		require.Equal(t, "USD", price.Currency)
	})

	t.Run("jsonld beats meta", func(t *testing.T) {
		doc := docFrom(t, `
<meta property="og:price:amount" content="99.99">
<script type="application/ld+json">{"@type":"Product","offers":{"price":"10.00","priceCurrency":"USD"}}</script>`)
		price, strategy, ok := Structured(doc)
		require.True(t, ok)
		require.Equal(t, StrategyJSONLD, strategy)
		require.InDelta(t, 10.0, price.Amount, 1e-9)
	})
}

func TestStructuredNothingFound(t *testing.T) {
	doc := docFrom(t, `<html><body><p>no commerce here</p></body></html>`)
	_, _, ok := Structured(doc)
	require.False(t, ok)
}

func TestTitle(t *testing.T) {
	doc := docFrom(t, `<html><head><title>  Widget — Best Shop  </title></head></html>`)
	require.Equal(t, "Widget — Best Shop", Title(doc))

	long := strings.Repeat("x", 400)
	doc = docFrom(t, `<title>`+long+`</title>`)
	require.Len(t, []rune(Title(doc)), 200)

	doc = docFrom(t, `<html><body></body></html>`)
	require.Empty(t, Title(doc))
}

func TestBySelector(t *testing.T) {
	doc := docFrom(t, `
<div id="main">
  <span class="offer-value">$129.99</span>
  <span class="note">save $20</span>
  <span class="bare">42.50</span>
</div>`)

	price, ok := BySelector(doc, ".offer-value")
	require.True(t, ok)
	require.InDelta(t, 129.99, price.Amount, 1e-9)
	require.Equal(t, "USD", price.Currency)

	price, ok = BySelector(doc, ".bare")
	require.True(t, ok)
	require.InDelta(t, 42.50, price.Amount, 1e-9)

	_, ok = BySelector(doc, ".missing")
	require.False(t, ok)

	_, ok = BySelector(doc, "")
	require.False(t, ok)

	_, ok = BySelector(doc, "[[not-a-selector")
	require.False(t, ok)
}
