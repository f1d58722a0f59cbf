// Package titlenorm holds two distinct title-normalization functions: CleanTitle, for
// fuzzy title matching (lowercasing, Roman numerals, accent stripping, leading
// articles), and NormalizeReleaseTitle, which the query planner's deduplication uses.
// They have different tag lists because they serve different purposes, so they are
// kept as separate functions rather than parameterizing one. The catalog's title
// search does not call CleanTitle: it compares lowercased strings and does not strip
// accents.
package titlenorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var romanNumeralRegex = regexp.MustCompile(`(?i) (ii|iii|iv|v|vi|vii|viii|ix)\b`)

var romanToArabic = map[string]string{
	"II": "2", "III": "3", "IV": "4", "V": "5",
	"VI": "6", "VII": "7", "VIII": "8", "IX": "9",
}

// normalizeRomanNumerals converts Roman numerals II-IX to Arabic digits. Standalone
// "I" and "X" and numerals at the start of the string are left alone to avoid false
// positives ("I Robot", "SPY x FAMILY", "VII Days").
func normalizeRomanNumerals(s string) string {
	return romanNumeralRegex.ReplaceAllStringFunc(s, func(match string) string {
		roman := strings.TrimSpace(match)
		if arabic, ok := romanToArabic[strings.ToUpper(roman)]; ok {
			return " " + arabic
		}
		return match
	})
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	for _, art := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, art) {
			return strings.TrimPrefix(s, art)
		}
	}
	return s
}

// CleanTitle normalizes a title for fuzzy matching purposes: lowercases, converts Roman
// numerals, strips accents, strips leading articles per colon-separated part, and
// collapses everything but letters/digits/whitespace.
func CleanTitle(title string) string {
	s := strings.ToLower(title)
	s = normalizeRomanNumerals(s)
	s = removeAccents(s)

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, ".", " ")

	parts := strings.Split(s, ":")
	for i, part := range parts {
		parts[i] = stripLeadingArticle(strings.TrimSpace(part))
	}
	s = strings.Join(parts, " ")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	s = b.String()

	return strings.Join(strings.Fields(s), " ")
}

// releaseTagPatterns match resolution, codec/audio, source, and movie/film tags commonly
// found in release titles, plus bracketed groups and a bare year pattern. Spec.md §4.7
// specifies this tag list is distinct from CleanTitle's article/accent concerns.
var releaseTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4k)\b`),
	regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|hevc|avc|aac|flac|opus)\b`),
	regexp.MustCompile(`(?i)\b(bluray|bd|web|webrip|web-dl|hdtv|dvd)\b`),
	regexp.MustCompile(`(?i)\b(movie|film|ova|oad)\b`),
	regexp.MustCompile(`\[[^\]]*\]`),
	regexp.MustCompile(`\([^)]*\)`),
	regexp.MustCompile(`\b(19|20)\d\d\b`),
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeReleaseTitle strips resolution/codec/audio/source/movie tags, bracketed
// groups, and year patterns from a release title, then collapses whitespace and
// lowercases the result. Used by the query planner's fuzzy deduplication pass.
// Idempotent: NormalizeReleaseTitle(NormalizeReleaseTitle(s)) == NormalizeReleaseTitle(s).
func NormalizeReleaseTitle(s string) string {
	out := strings.ToLower(s)
	for _, re := range releaseTagPatterns {
		out = re.ReplaceAllString(out, " ")
	}
	out = whitespaceRegex.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// latinRanges bound the Latin-script code point ranges spec.md §4.1 names.
type runeRange struct{ lo, hi rune }

var latinRanges = []runeRange{
	{0x0041, 0x007A},
	{0x00C0, 0x024F},
	{0x1E00, 0x1EFF},
}

func isLatinLetter(r rune) bool {
	for _, rr := range latinRanges {
		if r >= rr.lo && r <= rr.hi {
			return true
		}
	}
	return false
}

// IsLatinScript reports whether a string's alphabetic characters are more than 50%
// Latin-script. A string with exactly 50% Latin characters is classified non-Latin.
func IsLatinScript(s string) bool {
	var latin, alpha int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		alpha++
		if isLatinLetter(r) {
			latin++
		}
	}
	if alpha == 0 {
		return false
	}
	return float64(latin)/float64(alpha) > 0.5
}

// NormalizeSearchQuery prepares a search query for indexer APIs: converts & to "and"
// and collapses whitespace, preserving case and most punctuation.
func NormalizeSearchQuery(query string) string {
	s := strings.ReplaceAll(query, "&", "and")
	return strings.Join(strings.Fields(s), " ")
}

// FormatSize renders a byte count using the same unit ladder ParseSize reads, so that
// ParseSize(FormatSize(n)) == n for n representable to 0.1-unit precision.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n1 := n / unit; n1 >= unit; n1 /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB"}
	val := float64(n) / float64(div)
	return strconv.FormatFloat(val, 'f', 1, 64) + " " + units[exp]
}
