package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts text to NFC, turns CRLF into LF and drops control
// characters other than newline and tab. It fails on invalid UTF-8.
func Normalize(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", &IntentError{Kind: Ambiguous, Msg: "input is not valid UTF-8"}
	}
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' {
			return '\n'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text), nil
}

// SplitSentences splits normalized text into sentences. A sentence ends at
// '.', '!' or '?' followed by whitespace or the end of input, or at a blank
// line. Terminators inside double quotes and decimal points do not split.
// Line breaks inside a sentence become spaces.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		s := strings.TrimSpace(strings.NewReplacer("\n", " ", "\t", " ").Replace(cur.String()))
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	quoted := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '“' || r == '”':
			quoted = !quoted
			cur.WriteRune(r)
		case r == '\n' && !quoted && blankLineAhead(runes, i+1):
			flush()
		case (r == '.' || r == '!' || r == '?') && !quoted:
			cur.WriteRune(r)
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// blankLineAhead reports whether only spaces or tabs separate position i
// from the next newline.
func blankLineAhead(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t':
		case '\n':
			return true
		default:
			return false
		}
	}
	return false
}
