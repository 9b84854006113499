package core

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// skillDictionary is the vocabulary postings are scanned for when computing
// the skills a role asks for.
var skillDictionary = []string{
	"go", "python", "java", "javascript", "typescript", "c++", "c#", "rust",
	"ruby", "php", "kotlin", "swift", "scala", "sql", "nosql",
	"react", "angular", "vue", "node.js", "next.js", "django", "flask",
	"spring", "rails", ".net", "graphql", "grpc", "rest api",
	"postgresql", "mysql", "mongodb", "redis", "kafka", "rabbitmq",
	"elasticsearch", "docker", "kubernetes", "terraform", "ansible",
	"aws", "gcp", "azure", "linux", "git", "ci/cd",
	"machine learning", "deep learning", "pandas", "spark", "tableau",
	"power bi", "excel", "figma", "html", "css", "microservices",
}

var skillAliases = map[string][]string{
	"go":               {"golang"},
	"javascript":       {"js"},
	"kubernetes":       {"k8s"},
	"postgresql":       {"postgres"},
	"node.js":          {"nodejs"},
	"machine learning": {"ml"},
}

// Match is the skill overlap between a profile and a posting.
type Match struct {
	Score   int      `json:"score"`
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
}

// Matcher scores postings by keyword overlap with a skill list.
type Matcher struct {
	dictionary []string
}

func NewMatcher() *Matcher {
	return &Matcher{dictionary: skillDictionary}
}

// Score returns 0-100: the share of relevant skills (those the posting asks
// for plus those of the candidate it mentions) that the candidate has.
func (m *Matcher) Score(skills []string, title, description string) Match {
	text := strings.ToLower(title + " " + description)

	have := make(map[string]bool, len(skills))
	matched := []string{}
	for _, raw := range skills {
		skill := normalizeSkill(raw)
		if skill == "" || have[skill] {
			continue
		}
		have[skill] = true
		if mentionsSkill(text, skill) {
			matched = append(matched, skill)
		}
	}

	missing := []string{}
	for _, skill := range m.Extract(text) {
		if !have[skill] {
			missing = append(missing, skill)
		}
	}

	total := len(matched) + len(missing)
	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(len(matched)) / float64(total)))
	}
	sort.Strings(matched)
	return Match{Score: score, Matched: matched, Missing: missing}
}

// Extract returns the dictionary skills mentioned in text, in dictionary order.
func (m *Matcher) Extract(text string) []string {
	text = strings.ToLower(text)
	var out []string
	for _, skill := range m.dictionary {
		if mentionsSkill(text, skill) {
			out = append(out, skill)
		}
	}
	return out
}

func normalizeSkill(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for canonical, aliases := range skillAliases {
		for _, a := range aliases {
			if s == a {
				return canonical
			}
		}
	}
	return s
}

func mentionsSkill(text, skill string) bool {
	if containsTerm(text, skill) {
		return true
	}
	for _, alias := range skillAliases[skill] {
		if containsTerm(text, alias) {
			return true
		}
	}
	return false
}

// containsTerm finds term in text on word boundaries so "go" does not match
// "google".
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(term)
		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return true
		}
		from = i + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(text[i-1])
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	return !isWordByte(text[end])
}

func isWordByte(b byte) bool {
	return b < unicode.MaxASCII && (unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b)))
}
