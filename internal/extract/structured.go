package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

const titleMaxRunes = 200

// Structured extracts a price from embedded machine-readable product data:
// schema.org Product/Offer JSON-LD blocks first, then price meta tags.
// The first valid positive value wins.
func Structured(doc *goquery.Document) (Price, string, bool) {
	if price, ok := fromJSONLD(doc); ok {
		return price, StrategyJSONLD, true
	}
	if price, ok := fromMetaTags(doc); ok {
		return price, StrategyMeta, true
	}
	return Price{}, "", false
}

// Strategy names reported to the orchestrator.
const (
	StrategyJSONLD = "jsonld"
	StrategyMeta   = "meta"
)

func fromJSONLD(doc *goquery.Document) (Price, bool) {
	var (
		found Price
		ok    bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true // malformed block, try the next one
		}
		if price, hit := priceFromLDNode(data); hit {
			found, ok = price, true
			return false
		}
		return true
	})
	return found, ok
}

// priceFromLDNode walks a decoded JSON-LD value looking for an offers node
// with a usable price. Lists and @graph containers are descended into.
func priceFromLDNode(node any) (Price, bool) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if price, ok := priceFromLDNode(item); ok {
				return price, true
			}
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			if price, hit := priceFromLDNode(graph); hit {
				return price, true
			}
		}
		offers, ok := v["offers"]
		if !ok {
			return Price{}, false
		}
		if list, isList := offers.([]any); isList {
			if len(list) == 0 {
				return Price{}, false
			}
			offers = list[0]
		}
		offer, isMap := offers.(map[string]any)
		if !isMap {
			return Price{}, false
		}
		amount, parsed := ldAmount(offer["price"])
		if !parsed {
			return Price{}, false
		}
		currency := "USD"
		if c, isStr := offer["priceCurrency"].(string); isStr && c != "" {
			currency = strings.ToUpper(c)
		}
		return Price{Amount: amount, Currency: currency}, true
	}
	return Price{}, false
}

func ldAmount(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		if value < 0 {
			return 0, false
		}
		return value, true
	case string:
		return ParseAmount(value)
	default:
		return 0, false
	}
}

// metaPriceKeys are the recognized price annotation keys, tried in order.
var metaPriceKeys = []string{
	`meta[property="product:price:amount"]`,
	`meta[property="og:price:amount"]`,
	`meta[itemprop="price"]`,
	`meta[name="twitter:data1"]`,
}

var metaCurrencyKeys = []string{
	`meta[property="product:price:currency"]`,
	`meta[property="og:price:currency"]`,
	`meta[itemprop="priceCurrency"]`,
}

func fromMetaTags(doc *goquery.Document) (Price, bool) {
	for _, selector := range metaPriceKeys {
		content, exists := doc.Find(selector).First().Attr("content")
		if !exists || content == "" {
			continue
		}
		amount, ok := ParseAmount(content)
		if !ok {
			continue
		}
		return Price{Amount: amount, Currency: metaCurrency(doc, content)}, true
	}
	return Price{}, false
}

func metaCurrency(doc *goquery.Document, priceContent string) string {
	for _, selector := range metaCurrencyKeys {
		if content, exists := doc.Find(selector).First().Attr("content"); exists && content != "" {
			return strings.ToUpper(strings.TrimSpace(content))
		}
	}
	if _, _, currency, ok := FindPriceToken(priceContent); ok {
		return currency
	}
	return "USD"
}

// Title returns the page title, trimmed and capped, or "" when absent.
func Title(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		return string(runes[:titleMaxRunes])
	}
	return title
}

// BySelector extracts a price from the first node matching a caller-supplied
// CSS selector. The selector override takes precedence over every other
// strategy; a currency-adjacent token is preferred but a bare amount is
// accepted since the caller pointed directly at the node. Invalid selectors
// are treated as a miss, not an error.
func BySelector(doc *goquery.Document, selector string) (Price, bool) {
	if selector == "" {
		return Price{}, false
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return Price{}, false
	}
	node := doc.FindMatcher(matcher).First()
	if node.Length() == 0 {
		return Price{}, false
	}
	text := collapseSpace(node.Text())
	if raw, value, currency, ok := FindPriceToken(text); ok && raw != "" {
		return Price{Amount: value, Currency: currency}, true
	}
	if value, ok := ParseAmount(text); ok {
		return Price{Amount: value, Currency: "USD"}, true
	}
	return Price{}, false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
