package robots

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGroupsRulesByAgent(t *testing.T) {
	raw := `
# Pricewatch test fixture
User-agent: googlebot
Disallow: /private
Allow: /private/ok

User-agent: *
Disallow: /tmp
Crawl-delay: 2.5
`
	rs := Parse(raw)
	require.Equal(t, StatusFound, rs.Status)
	require.Len(t, rs.Rules, 3)

	require.Equal(t, Rule{PathPattern: "/private", Allowed: false, UserAgent: "googlebot"}, rs.Rules[0])
	require.Equal(t, Rule{PathPattern: "/private/ok", Allowed: true, UserAgent: "googlebot"}, rs.Rules[1])
	require.Equal(t, Rule{PathPattern: "/tmp", Allowed: false, UserAgent: "*"}, rs.Rules[2])
	require.Equal(t, 2.5, rs.CrawlDelaySeconds)
}

func TestParseConsecutiveAgentLinesShareRules(t *testing.T) {
	raw := `User-agent: botA
User-agent: botB
Disallow: /shared
`
	rs := Parse(raw)
	require.Len(t, rs.Rules, 2)
	require.Equal(t, "bota", rs.Rules[0].UserAgent)
	require.Equal(t, "botb", rs.Rules[1].UserAgent)
	require.Equal(t, "/shared", rs.Rules[0].PathPattern)
	require.Equal(t, "/shared", rs.Rules[1].PathPattern)
}

func TestParseAgentAfterRulesStartsNewGroup(t *testing.T) {
	raw := `User-agent: botA
Disallow: /a
User-agent: botB
Disallow: /b
`
	rs := Parse(raw)
	require.Len(t, rs.Rules, 2)
	require.Equal(t, "bota", rs.Rules[0].UserAgent)
	require.Equal(t, "/a", rs.Rules[0].PathPattern)
	require.Equal(t, "botb", rs.Rules[1].UserAgent)
	require.Equal(t, "/b", rs.Rules[1].PathPattern)
}

func TestParseToleratesJunk(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty input", ""},
		{"only comments", "# nothing here\n# at all"},
		{"malformed lines", "this is not a directive\nDisallowed /x"},
		{"empty disallow places no restriction", "User-agent: *\nDisallow:"},
		{"bad crawl delay", "User-agent: *\nCrawl-delay: soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := Parse(tt.raw)
			require.Empty(t, rs.Rules)
			require.Zero(t, rs.CrawlDelaySeconds)
		})
	}
}

func TestParseCaseInsensitiveDirectives(t *testing.T) {
	raw := "USER-AGENT: *\nDISALLOW: /x\nallow: /x/y"
	rs := Parse(raw)
	require.Len(t, rs.Rules, 2)
	require.False(t, rs.Rules[0].Allowed)
	require.True(t, rs.Rules[1].Allowed)
}

func TestParseStripsInlineComments(t *testing.T) {
	rs := Parse("User-agent: *\nDisallow: /secret # keep out")
	require.Len(t, rs.Rules, 1)
	require.Equal(t, "/secret", rs.Rules[0].PathPattern)
}
