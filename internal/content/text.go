package content

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds every allocated slug, suffix included.
const MaxSlugLength = 60

var articlePrefixes = []string{"the ", "a ", "an "}

// foldText strips diacritics and lowercases the input.
func foldText(value string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, value)
	if err != nil {
		folded = value
	}
	return strings.ToLower(folded)
}

// Slugify converts free text into a lowercase, hyphen-separated slug of at
// most MaxSlugLength characters. The result may be empty.
func Slugify(value string) string {
	folded := foldText(value)
	var builder strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			pendingHyphen = false
			builder.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return truncateSlug(builder.String(), MaxSlugLength)
}

func truncateSlug(slug string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(slug) > limit {
		slug = slug[:limit]
	}
	return strings.Trim(slug, "-")
}

// SortTitle derives the case and accent insensitive ordering key of a title.
func SortTitle(title string) string {
	key := strings.Join(strings.Fields(foldText(title)), " ")
	for _, prefix := range articlePrefixes {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return key[len(prefix):]
		}
	}
	return key
}

// searchTokens returns the sorted set of folded words found in values.
func searchTokens(values ...string) []string {
	seen := make(map[string]struct{})
	for _, value := range values {
		words := strings.FieldsFunc(foldText(value), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, word := range words {
			if len(word) < 2 {
				continue
			}
			seen[word] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
