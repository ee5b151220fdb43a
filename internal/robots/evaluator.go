package robots

import (
	"regexp"
	"strings"
)

// IsAllowed decides whether userAgent may fetch path under this rule set.
// Rules from the group matching userAgent are considered; when that group is
// empty the wildcard group applies. Among matching rules the longest path
// pattern wins, with Allow preferred on ties. No matching rule means allowed.
// A rule set whose source could not be fetched reads as allowed with the
// fail-open reason; enforcing strict mode on it is the caller's call.
func (rs *RuleSet) IsAllowed(path, userAgent string) Decision {
	if rs != nil && rs.Status == StatusFetchError {
		return Decision{Allowed: true, Reason: ReasonPolicyCheckFailedOpen}
	}
	if rs == nil || len(rs.Rules) == 0 {
		return Decision{Allowed: true, Reason: ReasonNoMatchingRule}
	}
	if path == "" {
		path = "/"
	}

	group := rs.selectGroup(userAgent)
	if group == "" {
		return Decision{Allowed: true, Reason: ReasonNoMatchingRule}
	}

	var (
		best    *Rule
		bestLen = -1
	)
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.UserAgent != group {
			continue
		}
		if !matchPattern(rule.PathPattern, path) {
			continue
		}
		patLen := len(rule.PathPattern)
		if patLen > bestLen || (patLen == bestLen && rule.Allowed && !best.Allowed) {
			best = rule
			bestLen = patLen
		}
	}
	if best == nil {
		return Decision{Allowed: true, Reason: ReasonNoMatchingRule}
	}
	if best.Allowed {
		return Decision{Allowed: true, Reason: ReasonExplicitAllow}
	}
	return Decision{Allowed: false, Reason: ReasonExplicitDeny}
}

// selectGroup picks the group token governing userAgent: the longest group
// token contained in the agent string, falling back to the wildcard group.
func (rs *RuleSet) selectGroup(userAgent string) string {
	agent := strings.ToLower(userAgent)
	var (
		chosen    string
		chosenLen int
		sawWild   bool
	)
	seen := make(map[string]struct{})
	for i := range rs.Rules {
		token := rs.Rules[i].UserAgent
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if token == WildcardAgent {
			sawWild = true
			continue
		}
		if strings.Contains(agent, token) && len(token) > chosenLen {
			chosen = token
			chosenLen = len(token)
		}
	}
	if chosen != "" {
		return chosen
	}
	if sawWild {
		return WildcardAgent
	}
	return ""
}

// matchPattern matches path against a robots path pattern. The pattern is a
// prefix match where `*` matches any sequence and a trailing `$` anchors the
// match to the end of the path.
func matchPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = strings.TrimSuffix(pattern, "$")
	}
	segments := strings.Split(pattern, "*")
	quoted := make([]string, len(segments))
	for i, seg := range segments {
		quoted[i] = regexp.QuoteMeta(seg)
	}
	expr := "^" + strings.Join(quoted, ".*")
	if anchored {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
