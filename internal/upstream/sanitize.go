package upstream

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// controlCharRe strips C0 control characters except TAB/LF/CR, plus DEL,
// mirroring the original sanitize_xml's character-class.
var controlCharRe = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

// numericCharRefRe matches decimal and hexadecimal numeric character
// references that encode C0 control code points (0-8, 11, 12, 14-31) so
// they can be stripped alongside literal control characters. It
// deliberately does not match references to printable code points
// (currency symbols, accented letters, etc.) — those must survive
// sanitization intact.
var numericCharRefRe = regexp.MustCompile(`&#(?:[0-8]|1[1-2]|1[4-9]|2[0-9]|3[0-1]|[xX]0*(?:[0-8bBcCeEfF]|1[0-9a-fA-F]));`)

// recognizedEntityRe matches the five XML-predefined entities plus any
// numeric character reference; anything else starting with a lone `&`
// must be re-escaped.
var recognizedEntityRe = regexp.MustCompile(`&(amp|lt|gt|quot|apos|#[0-9]+|#x[0-9A-Fa-f]+);`)
var loneAmpRe = regexp.MustCompile(`&`)

// Sanitize decodes bytes trying UTF-8, then Windows-1252, then Latin-1
// in order; strips control characters and numeric character references
// to control code points; and re-escapes lone ampersands not part of a
// recognized entity.
func Sanitize(raw []byte) string {
	text := decode(raw)

	text = controlCharRe.ReplaceAllString(text, "")
	text = numericCharRefRe.ReplaceAllString(text, "")

	// Re-escape any `&` that isn't the start of amp/lt/gt/quot/apos/#NNN.
	// Only control-point numeric refs were stripped above; references to
	// printable code points (e.g. &#163;, &#8364;) are still present and
	// recognized here, so they pass through untouched.
	var buf bytes.Buffer
	last := 0
	for _, loc := range loneAmpRe.FindAllStringIndex(text, -1) {
		start := loc[0]
		buf.WriteString(text[last:start])
		rest := text[start:]
		if m := recognizedEntityRe.FindStringIndex(rest); m != nil && m[0] == 0 {
			buf.WriteString("&")
		} else {
			buf.WriteString("&amp;")
		}
		last = start + 1
	}
	buf.WriteString(text[last:])

	return buf.String()
}

// decode tries UTF-8, then Windows-1252, then Latin-1, returning the
// first decoding that produces valid UTF-8 output.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	if s, err := charmap.Windows1252.NewDecoder().String(string(raw)); err == nil {
		return s
	}

	if s, err := charmap.ISO8859_1.NewDecoder().String(string(raw)); err == nil {
		return s
	}

	// Last resort: return the raw bytes unchanged as a string.
	return bytes.NewBuffer(raw).String()
}
