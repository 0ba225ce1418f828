package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const refFragment = `(?:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}|\d+)`

var (
	uuidRe  = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	digitRe = regexp.MustCompile(`[0-9]+`)

	addPatterns = compileAll(
		`add task\s*:\s*(.*)`,
		`add a task (?:to )?(.*)`,
		`create a task (?:to )?(.*)`,
		`add task (?:to )?(.*)`,
		`create task (?:to )?(.*)`,
		`(?:make a note|remind me|don't forget) to (.*)`,
		`remember to (.*)`,
		`need to (.*)`,
		`have to (.*)`,
		`\badd (?:a )?(.*)`,
		`\bcreate (?:a )?(.*)`,
	)

	updateTitlePatterns = compileAll(
		`update\s+task\s+`+refFragment+`\s+title\s*[,:]*\s*(.+)$`,
		`change\s+task\s+`+refFragment+`\s+title\s*[,:]*\s*(.+)$`,
		`(?:rename|edit)\s+task\s+`+refFragment+`\s+(?:title\s*[,:]*|to)\s*["':]?\s*(.+)$`,
		`update\s+task\s+`+refFragment+`\s+to\s+["':]?\s*(.+)$`,
		`change\s+task\s+`+refFragment+`\s+to\s+["':]?\s*(.+)$`,
		`(?:update|change|rename|modify|edit|alter)\s+.*?\s+to\s+["':]?\s*(.+)$`,
		`(?:update|change|rename|modify|edit|alter)\s+task\s+`+refFragment+`\s*:\s*(.+)$`,
		`(?:update|change|rename|modify|edit|alter)\s+.*?\s+(?:to|title)\s+['"](.+?)['"]`,
	)

	descriptionPatterns = compileAll(
		`(?:update|change|modify|edit)\s+task\s+`+refFragment+`\s+desc(?:ription)?\s+(.+)$`,
		`(?:update|change|modify|edit)\s+task\s+`+refFragment+`\s+desc(?:ription)?\s*:\s*(.+)$`,
		`(?:update|change|modify|edit)\s+task\s+`+refFragment+`\s+desc(?:ription)?\s+to\s+(.+)$`,
		`(?:update|change|modify|edit)\s+task\s+`+refFragment+`\s+desc(?:ription)?\s+['"](.+?)['"]`,
	)
	descriptionTailRe = regexp.MustCompile(`(?i)desc(?:ription)?\s*(?:[:\s]|to\s)*\s*(.*)$`)

	trailingPunctRe = regexp.MustCompile(`[.,!?;]+$`)
	pairedQuotesRe  = regexp.MustCompile(`^["'](.+?)["']$`)
	trailingQuoteRe = regexp.MustCompile(`["']$`)
	leadingColonRe  = regexp.MustCompile(`^[:\s]+`)
	fillerRe        = regexp.MustCompile(`(?i)\b(?:that|i)\b`)
	articleRe       = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)
	titleLeadRe     = regexp.MustCompile(`(?i)^(?:to|the|a|an)\s+`)
	descLeadRe      = regexp.MustCompile(`(?i)^(?:to|the|a|an|and)\s+`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

var (
	titleStopwords = set("me", "it", "them", "that", "this", "there", "here", "to", "the", "a", "an")
	descStopwords  = set("me", "it", "them", "that", "this", "there", "here", "to", "the", "a", "an", "for")
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// TaskRef returns the first UUID in message, verbatim, or else the first run
// of ASCII digits.
func TaskRef(message string) (string, bool) {
	if m := uuidRe.FindString(message); m != "" {
		return m, true
	}
	if m := digitRe.FindString(message); m != "" {
		return m, true
	}
	return "", false
}

// addTitle runs the add patterns in order. The whole message is used only
// when no pattern matched at all.
func addTitle(message string) (string, bool) {
	matched := false
	for _, re := range addPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		matched = true
		if title, ok := finalize(cleanAddTitle(m[1]), nil); ok {
			return title, true
		}
	}
	if matched {
		return "", false
	}

	lower := strings.ToLower(message)
	if wordCount(message) > 10 || containsAny(commandWords...)(lower) {
		return "", false
	}
	return finalize(strings.TrimSpace(message), nil)
}

func cleanAddTitle(s string) string {
	s = strings.TrimSpace(s)
	s = trailingPunctRe.ReplaceAllString(s, "")
	s = stripQuotes(strings.TrimSpace(s))
	s = fillerRe.ReplaceAllString(s, "")
	s = articleRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = spacesRe.ReplaceAllString(s, " ")
	s = leadingColonRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

func updateTitle(message string) (string, bool) {
	for _, re := range updateTitlePatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		s := cleanUpdateText(m[1])
		s = strings.TrimSpace(titleLeadRe.ReplaceAllString(s, ""))
		if title, ok := finalize(s, titleStopwords); ok {
			return title, true
		}
	}
	return "", false
}

func updateDescription(message string) (string, bool) {
	for _, re := range descriptionPatterns {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		s := cleanUpdateText(m[1])
		s = strings.TrimSpace(descLeadRe.ReplaceAllString(s, ""))
		if desc, ok := finalize(s, descStopwords); ok {
			return desc, true
		}
	}

	m := descriptionTailRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	s := strings.TrimSpace(m[1])
	if s != "" && (s[0] == '\'' || s[0] == '"') {
		if end := strings.IndexByte(s[1:], s[0]); end >= 0 {
			s = s[1 : end+1]
		} else {
			s = s[1:]
		}
	}
	s = strings.Trim(s, ` '"`)
	s = trailingPunctRe.ReplaceAllString(s, "")
	s = leadingColonRe.ReplaceAllString(strings.TrimSpace(s), "")
	return finalize(strings.TrimSpace(s), descStopwords)
}

func cleanUpdateText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(trailingPunctRe.ReplaceAllString(s, ""))
	s = strings.TrimSpace(pairedQuotesRe.ReplaceAllString(s, "$1"))
	s = strings.TrimSpace(trailingQuoteRe.ReplaceAllString(s, ""))
	s = leadingColonRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func stripQuotes(s string) string {
	s = pairedQuotesRe.ReplaceAllString(s, "$1")
	s = strings.TrimSpace(trailingQuoteRe.ReplaceAllString(s, ""))
	return strings.TrimLeft(s, `"'`)
}

// finalize rejects empty, all-digit and stopword-only text and capitalizes
// the first letter.
func finalize(s string, stopwords map[string]struct{}) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || allDigits(s) {
		return "", false
	}
	if _, stop := stopwords[strings.ToLower(s)]; stop {
		return "", false
	}
	return capitalizeFirst(s), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
