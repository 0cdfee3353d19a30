// Package normalize provides pure, stateless cleanup operations on raw
// ticket text: Unicode normalization, HTML stripping, whitespace collapsing,
// signature trimming, PII masking, and a lightweight language detector.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls which cleanup stages clean runs.
type CleanOptions struct {
	RemoveHTML           bool
	RemoveSignatures     bool
	MaskPII              bool
	PreserveNativeScript bool
}

// DefaultCleanOptions enables HTML stripping, signature trimming and
// transliteration, and leaves PII masking off; this is the shape used by the
// pipeline's first step.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		RemoveHTML:       true,
		RemoveSignatures: true,
		MaskPII:          false,
	}
}

var blockTagRE = regexp.MustCompile(`(?i)</(br|p|div|li)>`)
var brSelfCloseRE = regexp.MustCompile(`(?i)<br\s*/?>`)
var anyTagRE = regexp.MustCompile(`<[^>]+>`)

var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)--\s*\n.*$`),
	regexp.MustCompile(`(?is)best regards,.*$`),
	regexp.MustCompile(`(?is)kind regards,.*$`),
	regexp.MustCompile(`(?is)regards,.*$`),
	regexp.MustCompile(`(?is)thanks,.*$`),
	regexp.MustCompile(`(?is)sent from my (iphone|ipad|android).*$`),
	regexp.MustCompile(`(?is)saygılarımla,.*$`),
	regexp.MustCompile(`(?is)iyi çalışmalar,.*$`),
}

var (
	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	urlRE   = regexp.MustCompile(`https?://[^\s]+`)
	phoneRE = regexp.MustCompile(`\+?[\d][\d\-. ()]{6,}\d`)
)

var turkishToASCII = strings.NewReplacer(
	"ç", "c", "Ç", "C",
	"ğ", "g", "Ğ", "G",
	"ı", "i", "İ", "I",
	"ö", "o", "Ö", "O",
	"ş", "s", "Ş", "S",
	"ü", "u", "Ü", "U",
)

// PIIMapping records the original values masked out of a text, keyed by the
// positional token that replaced them.
type PIIMapping map[string]string

// Clean runs the full cleanup pipeline in order: Unicode NFC normalization,
// optional HTML stripping, optional script transliteration, whitespace
// collapsing, optional signature trimming, optional PII masking.
// Clean is idempotent: Clean(Clean(x), opts) == Clean(x, opts).
func Clean(text string, opts CleanOptions) (string, PIIMapping) {
	out := norm.NFC.String(text)

	if opts.RemoveHTML {
		out = removeHTML(out)
	}

	if !opts.PreserveNativeScript {
		out = turkishToASCII.Replace(out)
	}

	out = normalizeWhitespace(out)

	if opts.RemoveSignatures {
		out = removeSignatures(out)
		out = normalizeWhitespace(out)
	}

	var mapping PIIMapping
	if opts.MaskPII {
		out, mapping = maskPII(out)
	}

	return out, mapping
}

func removeHTML(text string) string {
	text = blockTagRE.ReplaceAllString(text, "\n")
	text = brSelfCloseRE.ReplaceAllString(text, "\n")
	text = anyTagRE.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

var tabRE = regexp.MustCompile(`\t`)
var crlfRE = regexp.MustCompile(`\r\n|\r`)
var multiNewlineRE = regexp.MustCompile(`\n{3,}`)
var spaceCollapseRE = regexp.MustCompile(` {2,}`)

func normalizeWhitespace(text string) string {
	text = tabRE.ReplaceAllString(text, " ")
	text = crlfRE.ReplaceAllString(text, "\n")
	text = multiNewlineRE.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceCollapseRE.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

func removeSignatures(text string) string {
	for _, re := range signaturePatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}
	return text
}

func maskPII(text string) (string, PIIMapping) {
	mapping := make(PIIMapping)

	emailCount := 0
	text = emailRE.ReplaceAllStringFunc(text, func(m string) string {
		emailCount++
		token := tokenFor("EMAIL", emailCount)
		mapping[token] = m
		return token
	})

	urlCount := 0
	text = urlRE.ReplaceAllStringFunc(text, func(m string) string {
		urlCount++
		token := tokenFor("URL", urlCount)
		mapping[token] = m
		return token
	})

	phoneCount := 0
	text = phoneRE.ReplaceAllStringFunc(text, func(m string) string {
		digits := 0
		for _, r := range m {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		if digits < 7 {
			return m
		}
		phoneCount++
		token := tokenFor("PHONE", phoneCount)
		mapping[token] = m
		return token
	})

	return text, mapping
}

func tokenFor(kind string, idx int) string {
	return "[" + kind + "_" + itoa(idx) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// DetectLanguage identifies the dominant language of text and a heuristic
// confidence. Empty input returns ("en", 0.5); any other text without
// Turkish markers is reported as "en" with the length-based confidence.
func DetectLanguage(text string) (string, float64) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "en", 0.5
	}

	code := detectByScript(trimmed)

	confidence := 0.5 + float64(len(trimmed))/1000.0
	if confidence > 0.95 {
		confidence = 0.95
	}
	return code, confidence
}

// detectByScript is a minimal heuristic identifier: it looks for
// language-specific diacritics and common stop-words rather than depending
// on a large external corpus-backed model.
func detectByScript(text string) string {
	lower := strings.ToLower(text)
	turkishMarkers := []rune{'ç', 'ğ', 'ı', 'ö', 'ş', 'ü'}
	for _, r := range turkishMarkers {
		if strings.ContainsRune(lower, r) {
			return "tr"
		}
	}
	for _, word := range []string{" ve ", " bir ", " için ", "merhaba"} {
		if strings.Contains(lower, word) {
			return "tr"
		}
	}
	return "en"
}

// Truncate shortens text to at most maxLen runes, appending suffix when
// truncation occurs. Text shorter than or equal to maxLen is returned
// unchanged.
func Truncate(text string, maxLen int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if suffix == "" {
		suffix = "…"
	}
	cut := maxLen - len([]rune(suffix))
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + suffix
}
