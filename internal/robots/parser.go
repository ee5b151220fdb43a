package robots

import (
	"strconv"
	"strings"
)

// Parse converts raw robots.txt text into a RuleSet. It is line-oriented and
// forgiving: blank lines and comments are ignored, malformed lines are
// skipped. Consecutive User-agent lines accumulate into one group that shares
// the subsequent rules; a User-agent line following rules starts a new group.
func Parse(raw string) *RuleSet {
	rs := &RuleSet{Status: StatusFound}

	var agents []string
	inAgentRun := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		directive, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		directive = strings.ToLower(strings.TrimSpace(directive))
		value = strings.TrimSpace(value)

		switch directive {
		case "user-agent":
			if value == "" {
				continue
			}
			if !inAgentRun {
				agents = agents[:0]
			}
			agents = append(agents, strings.ToLower(value))
			inAgentRun = true
		case "allow", "disallow":
			inAgentRun = false
			// An empty Disallow places no restriction; an empty Allow
			// adds nothing either.
			if value == "" {
				continue
			}
			for _, agent := range agentsOrWildcard(agents) {
				rs.Rules = append(rs.Rules, Rule{
					PathPattern: value,
					Allowed:     directive == "allow",
					UserAgent:   agent,
				})
			}
		case "crawl-delay":
			inAgentRun = false
			if delay, err := strconv.ParseFloat(value, 64); err == nil && delay >= 0 {
				rs.CrawlDelaySeconds = delay
			}
		default:
			// Sitemap and unknown directives are out of scope.
			inAgentRun = false
		}
	}
	return rs
}

// agentsOrWildcard attributes rules appearing before any User-agent line to
// the wildcard group, matching how permissive parsers treat stray records.
func agentsOrWildcard(agents []string) []string {
	if len(agents) == 0 {
		return []string{WildcardAgent}
	}
	return agents
}
