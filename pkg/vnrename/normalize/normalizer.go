package normalize

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Filename applies the full pipeline to a filename, normalizing only
// the stem when extension preservation is enabled. Deterministic for
// identical input; no side effects.
func Filename(name string, rules Rules) string {
	if name == "" {
		return ""
	}
	if rules.PreserveExtensions {
		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		normalized := Text(stem, rules)
		if rules.MaxFilenameLength > 0 && len(normalized)+len(ext) > rules.MaxFilenameLength {
			normalized = strings.TrimSpace(truncate(normalized, rules.MaxFilenameLength-len(ext)))
		}
		if normalized == "" {
			return ext
		}
		return normalized + ext
	}
	return Text(name, rules)
}

// Text runs the normalization pipeline over arbitrary text in fixed
// order: diacritics, case, special characters, whitespace.
func Text(text string, rules Rules) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	result := text
	if rules.RemoveDiacritics {
		result = FoldDiacritics(result)
	}
	if rules.LowercaseConversion {
		result = strings.ToLower(result)
	}
	if rules.CleanSpecialChars {
		result = cleanSpecialChars(result, rules.replacements())
	}
	if rules.NormalizeWhitespace {
		result = collapseWhitespace(result)
	}
	if rules.MaxFilenameLength > 0 && len(result) > rules.MaxFilenameLength {
		result = strings.TrimSpace(truncate(result, rules.MaxFilenameLength))
	}
	return result
}

// truncate cuts s to at most max bytes, backing up so the cut never
// lands inside a multi-byte rune.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// FoldDiacritics strips Vietnamese diacritics: decompose to NFD, drop
// combining marks, then map the base letters NFD cannot reach.
func FoldDiacritics(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case 'đ':
			b.WriteRune('d')
		case 'Đ':
			b.WriteRune('D')
		case '₫':
			b.WriteString("dong")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var datePattern = regexp.MustCompile(`\b\d{2}-\d{2}-\d{4}\b`)

// cleanSpecialChars applies the replacement table. Hyphens are handled
// last with date awareness: dd-mm-yyyy sequences keep their hyphens.
func cleanSpecialChars(text string, table map[string]string) string {
	result := text
	for char, repl := range table {
		if char == "-" {
			continue
		}
		result = strings.ReplaceAll(result, char, repl)
	}

	hyphenRepl, hasHyphen := table["-"]
	if !hasHyphen || !strings.Contains(result, "-") {
		return result
	}

	dates := datePattern.FindAllString(result, -1)
	placeholders := make(map[string]string, len(dates))
	for i, date := range dates {
		ph := "\x00DATE" + strconv.Itoa(i) + "\x00"
		result = strings.Replace(result, date, ph, 1)
		placeholders[ph] = date
	}
	result = strings.ReplaceAll(result, "-", hyphenRepl)
	for ph, date := range placeholders {
		result = strings.Replace(result, ph, date, 1)
	}
	return result
}

var multiSpace = regexp.MustCompile(`\s+`)

func collapseWhitespace(text string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))
}
