package scraper

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

var remoteIndicators = []string{
	"remote",
	"work from home",
	"work-from-home",
	"wfh",
	"anywhere",
	"distributed team",
}

var hybridIndicators = []string{
	"hybrid",
}

var internshipWords = map[string]struct{}{
	"intern":         {},
	"interns":        {},
	"internship":     {},
	"internships":    {},
	"trainee":        {},
	"apprentice":     {},
	"apprenticeship": {},
	"co-op":          {},
}

// HasRemoteIndicator reports whether free text mentions remote work.
func HasRemoteIndicator(text string) bool {
	return containsAny(strings.ToLower(text), remoteIndicators)
}

// InferWorkMode guesses the work mode from provider text. Hybrid wins over
// remote because hybrid postings usually mention "remote" as well; anything
// without an indicator is treated as onsite.
func InferWorkMode(texts ...string) WorkMode {
	joined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case containsAny(joined, hybridIndicators):
		return WorkModeHybrid
	case containsAny(joined, remoteIndicators):
		return WorkModeRemote
	default:
		return WorkModeOnsite
	}
}

// InferKind classifies a posting as internship when the title or employment
// type says so. Descriptions are ignored: they often mention interns in
// passing.
func InferKind(title, employmentType string) Kind {
	text := strings.ToLower(title + " " + employmentType)
	for _, word := range strings.FieldsFunc(text, notWordRune) {
		if _, ok := internshipWords[word]; ok {
			return KindInternship
		}
	}
	return KindJob
}

// DeriveExternalID builds a stable id for providers that do not expose one.
func DeriveExternalID(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// ParsePostedAt parses a provider date with the given layouts. It returns the
// trimmed raw value alongside so callers can tell "absent" from "unparsable".
func ParsePostedAt(raw string, layouts ...string) (*time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc, raw
		}
	}
	return nil, raw
}

func floatPtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func notWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func joinParts(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}
