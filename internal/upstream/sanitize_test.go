package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_StripsControlChars(t *testing.T) {
	raw := []byte("<TAG>va\x01lue\x1f</TAG>")
	got := Sanitize(raw)
	assert.Equal(t, "<TAG>value</TAG>", got)
}

func TestSanitize_StripsNumericCharRefs(t *testing.T) {
	raw := []byte("<TAG>a&#7;b&#x1F;c</TAG>")
	got := Sanitize(raw)
	assert.Equal(t, "<TAG>abc</TAG>", got)
}

func TestSanitize_ReescapesLoneAmp(t *testing.T) {
	raw := []byte("<TAG>Fish & Chips &amp; More</TAG>")
	got := Sanitize(raw)
	assert.Equal(t, "<TAG>Fish &amp; Chips &amp; More</TAG>", got)
}

func TestSanitize_KeepsTabLFCR(t *testing.T) {
	raw := []byte("line1\tindented\nline2\r\n")
	got := Sanitize(raw)
	assert.Equal(t, "line1\tindented\nline2\r\n", got)
}
