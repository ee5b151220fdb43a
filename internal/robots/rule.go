// Package robots implements the robots.txt compliance subsystem: fetching,
// parsing, caching, and evaluating crawl rules per domain.
package robots

import "time"

// WildcardAgent matches every crawler identity.
const WildcardAgent = "*"

// SourceStatus classifies how a domain's robots.txt was obtained.
type SourceStatus string

const (
	// StatusFound means robots.txt was fetched and parsed.
	StatusFound SourceStatus = "found"
	// StatusNotFound means the server returned 404; everything is allowed.
	StatusNotFound SourceStatus = "notFound"
	// StatusFetchError means the fetch failed; policy is indeterminate.
	StatusFetchError SourceStatus = "fetchError"
)

// Rule is a single Allow/Disallow directive. Immutable once parsed.
type Rule struct {
	PathPattern string
	Allowed     bool
	UserAgent   string
}

// RuleSet holds every parsed directive for one domain. Crawl-delay is parsed
// and stored but never enforced by this engine; callers may log it.
type RuleSet struct {
	Rules             []Rule
	CrawlDelaySeconds float64
	FetchedAt         time.Time
	Status            SourceStatus
}

// Reason explains a policy decision.
type Reason string

const (
	ReasonExplicitAllow         Reason = "explicitAllow"
	ReasonExplicitDeny          Reason = "explicitDeny"
	ReasonNoMatchingRule        Reason = "noMatchingRule"
	ReasonPolicyCheckFailedOpen Reason = "policyCheckFailedOpen"
)

// Decision is the outcome of evaluating a path against a rule set.
type Decision struct {
	Allowed bool
	Reason  Reason
}
