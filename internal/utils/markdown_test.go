package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("**Dark** corner <script>alert(1)</script>")
	assert.Contains(t, out, "<strong>Dark</strong>")
	assert.NotContains(t, out, "<script")

	out = RenderMarkdown("![pothole](https://example.com/p.png)")
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)
	assert.Contains(t, out, `alt="pothole"`)

	out = RenderMarkdown("[map](https://example.com/map)")
	assert.Contains(t, out, `target="_blank"`)

	assert.Empty(t, RenderMarkdown("   "))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Broken light ", "Broken light"},
		{"<b>Pothole</b> &amp; crack", "Pothole & crack"},
		{"<script>alert(1)</script>Leak", "Leak"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), "input %q", tt.in)
	}
}

func TestParseID(t *testing.T) {
	id, ok := ParseID(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := ParseID(bad)
		assert.False(t, ok, "input %q", bad)
	}
	assert.Equal(t, 7, StringToInt("7"))
	assert.Zero(t, StringToInt("seven"))
}
