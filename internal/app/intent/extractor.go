package intent

import "strings"

// Rule pairs a keyword predicate with the extractor that runs once the
// predicate has selected the category. Match receives the lower-cased,
// trimmed message; Extract receives the trimmed original and its lower-cased
// form.
type Rule struct {
	Kind    Kind
	Match   func(lower string) bool
	Extract func(original, lower string) Intent
}

// Extractor evaluates rules in order; the first rule whose predicate matches
// decides the outcome, even when its extraction fails.
type Extractor struct {
	rules []Rule
}

// NewExtractor builds an extractor over rules, or over DefaultRules when none
// are given.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Rules returns the rule table in evaluation order.
func (e *Extractor) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Extract is total: every input yields an Intent, possibly KindNone.
func (e *Extractor) Extract(message string) Intent {
	original := strings.TrimSpace(message)
	lower := strings.ToLower(original)
	if lower == "" {
		return none(FailureAmbiguous)
	}

	for _, r := range e.rules {
		if !r.Match(lower) {
			continue
		}
		in := r.Extract(original, lower)
		in.Matched = r.Kind
		if in.Kind != KindNone && in.Failure == FailureNone {
			return in
		}
		in.Kind = KindNone
		if in.Failure == FailureNone {
			in.Failure = FailureIncomplete
		}
		return in
	}
	return none(FailureAmbiguous)
}

var defaultExtractor = NewExtractor()

// Extract runs the default rule table.
func Extract(message string) Intent {
	return defaultExtractor.Extract(message)
}

func containsAny(keywords ...string) func(string) bool {
	return func(lower string) bool {
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
}
