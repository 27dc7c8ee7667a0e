package idgen

import (
	"regexp"
	"strings"
	"unicode"
)

// StopWords are common words removed from titles during ID generation.
// These words don't add meaning to the ID.
var StopWords = map[string]bool{
	// Articles
	"a": true, "an": true, "the": true,
	// Prepositions
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true,
	// Conjunctions
	"and": true, "or": true, "but": true, "nor": true,
	// Common verbs that don't add meaning
	"is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true,
	// Other common words
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true,
}

// PriorityPrefixes are words that indicate priority but don't add meaning to the ID.
var PriorityPrefixes = map[string]bool{
	"urgent":   true,
	"critical": true,
	"p0":       true,
	"p1":       true,
	"p2":       true,
	"p3":       true,
	"p4":       true,
	"blocker":  true,
	"hotfix":   true,
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

var multipleUnderscoreRegex = regexp.MustCompile(`_+`)

// SemanticIDGenerator derives human-readable persistent task ids from
// task titles, for stores that want a friendlier id than a bare counter
// or UUID. Callers needing only opaque ids can ignore this package
// entirely; the store contract treats persistent ids as opaque strings.
type SemanticIDGenerator struct {
	maxSlugLength int
}

// NewSemanticIDGenerator creates a new generator with default settings.
func NewSemanticIDGenerator() *SemanticIDGenerator {
	return &SemanticIDGenerator{
		maxSlugLength: 46,
	}
}

// GenerateSlug converts a title to a slug suitable for a semantic ID.
// The returned slug is lowercase, uses underscores as separators,
// and has stop words removed.
func (g *SemanticIDGenerator) GenerateSlug(title string) string {
	if title == "" {
		return "untitled"
	}

	slug := strings.ToLower(title)
	slug = nonAlphanumericRegex.ReplaceAllString(slug, " ")
	words := strings.Fields(slug)

	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if !StopWords[word] && !PriorityPrefixes[word] {
			filtered = append(filtered, word)
		}
	}

	if len(filtered) == 0 && len(words) > 0 {
		filtered = []string{words[0]}
	}

	slug = strings.Join(filtered, "_")

	if len(slug) > 0 && !unicode.IsLetter(rune(slug[0])) {
		slug = "n" + slug
	}

	if len(slug) > g.maxSlugLength {
		truncated := slug[:g.maxSlugLength]
		if lastUnderscore := strings.LastIndex(truncated, "_"); lastUnderscore > g.maxSlugLength/2 {
			truncated = truncated[:lastUnderscore]
		}
		slug = truncated
	}

	if len(slug) < 3 {
		slug = slug + strings.Repeat("x", 3-len(slug))
	}

	slug = strings.Trim(slug, "_")
	slug = multipleUnderscoreRegex.ReplaceAllString(slug, "_")

	return slug
}

// GenerateSemanticID generates a complete semantic task id, "<prefix>-<slug>",
// disambiguating against existingIDs with a numeric suffix on collision.
func (g *SemanticIDGenerator) GenerateSemanticID(prefix, title string, existingIDs []string) string {
	slug := g.GenerateSlug(title)
	baseID := prefix + "-" + slug

	id := baseID
	suffix := 2
	for contains(existingIDs, id) {
		id = baseID + "_" + itoa(suffix)
		suffix++
		if suffix > 99 {
			break
		}
	}

	return id
}

// GenerateSemanticIDWithCallback generates a semantic task id using a
// callback to check for collisions, for callers backed by a store rather
// than an in-memory id list.
func (g *SemanticIDGenerator) GenerateSemanticIDWithCallback(prefix, title string, exists func(id string) bool) string {
	slug := g.GenerateSlug(title)
	baseID := prefix + "-" + slug

	id := baseID
	suffix := 2
	for exists(id) {
		id = baseID + "_" + itoa(suffix)
		suffix++
		if suffix > 99 {
			break
		}
	}

	return id
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// itoa converts an int to a string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
