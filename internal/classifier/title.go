// Package classifier derives a company name and an on-call team member from a meeting title.
package classifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/IliaW/granola-scraper-bot/internal/model"
)

// Multi-character separators go first so " x " is not eaten by a shorter token.
var separators = []string{" <> ", "<>", " x ", " X ", " - ", " | ", " / ", "/", " & ", " and ", " with "}

var meetingWords = toSet([]string{
	"intro", "introduction", "call", "meeting", "sync", "check-in",
	"checkin", "follow-up", "followup", "chat", "discussion", "review",
	"demo", "presentation", "kickoff", "onboarding", "interview",
})

var word = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Vocabulary is the fixed name data the classifier works with.
type Vocabulary struct {
	// ExcludedTerms are organization and team names removed from company candidates.
	ExcludedTerms []string
	// MemberNames are team members detected as the on-call person, in priority order.
	MemberNames []string
}

type Classifier struct {
	excluded map[string]struct{}
	members  []string
}

func New(v Vocabulary) *Classifier {
	members := make([]string, 0, len(v.MemberNames))
	for _, m := range v.MemberNames {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			members = append(members, m)
		}
	}
	return &Classifier{
		excluded: toSet(v.ExcludedTerms),
		members:  members,
	}
}

func (c *Classifier) Classify(title string) model.TitleClassification {
	company, _ := c.EntityName(title)
	member, _ := c.TeamMember(title)
	return model.TitleClassification{CompanyName: company, TeamMemberName: member}
}

// EntityName returns the first title fragment that is not a team name or a generic meeting word.
func (c *Classifier) EntityName(title string) (string, bool) {
	parts := []string{title}
	for _, sep := range separators {
		next := make([]string, 0, len(parts))
		for _, p := range parts {
			next = append(next, strings.Split(p, sep)...)
		}
		parts = next
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		if c.isFiltered(lower) {
			continue
		}

		words := word.FindAllString(lower, -1)
		remaining := make([]string, 0, len(words))
		for _, w := range words {
			if !c.isFiltered(w) {
				remaining = append(remaining, w)
			}
		}
		if len(remaining) == 0 {
			continue
		}
		if len(remaining) == len(words) {
			return part, true
		}
		for i, w := range remaining {
			remaining[i] = capitalize(w)
		}
		return strings.Join(remaining, " "), true
	}

	return "", false
}

// TeamMember returns the first known member whose name appears in title as a whole word.
func (c *Classifier) TeamMember(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, m := range c.members {
		if containsWord(lower, m) {
			return capitalize(m), true
		}
	}
	return "", false
}

func (c *Classifier) isFiltered(lower string) bool {
	if _, ok := meetingWords[lower]; ok {
		return true
	}
	_, ok := c.excluded[lower]
	return ok
}

func containsWord(text, w string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], w)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(w)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
