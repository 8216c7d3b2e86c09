// internal/browser/parser/css_test.go
package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func d(prop, val string, important bool) Declaration {
	return Declaration{Property: Property(prop), Value: Value(val), Important: important}
}

func TestParseInline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Block
	}{
		{"empty", "", nil},
		{"single without semicolon", "display:none", Block{d("display", "none", false)}},
		{
			"several with whitespace and case",
			"  Width : 120px ;HEIGHT:40px;; display: block ",
			Block{d("width", "120px", false), d("height", "40px", false), d("display", "block", false)},
		},
		{"important", "width: 10px !important", Block{d("width", "10px", true)}},
		{
			"semicolons inside strings and functions",
			`content: "a;b"; background: url(x;y.png); width: 1px`,
			Block{d("content", `"a;b"`, false), d("background", "url(x;y.png)", false), d("width", "1px", false)},
		},
		{
			"malformed declarations are skipped",
			"color red; 9lives: yes; :none; width: 5px; height:",
			Block{d("width", "5px", false)},
		},
		{"comments", "/* hide */ display: none; /* unterminated", Block{d("display", "none", false)}},
		{"unterminated string", `content: "abc`, Block{d("content", `"abc`, false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInline(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseInline(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestBlock_Lookup(t *testing.T) {
	b := ParseInline("width: 1px; width: 2px !important; width: 3px; display: none")

	v, ok := b.Lookup("width")
	assert.True(t, ok)
	assert.Equal(t, Value("2px"), v, "important beats a later normal declaration")

	v, ok = ParseInline("width: 1px; width: 3px").Lookup("width")
	assert.True(t, ok)
	assert.Equal(t, Value("3px"), v, "last declaration wins")

	_, ok = b.Lookup("height")
	assert.False(t, ok)
}

func TestBlock_Pixels(t *testing.T) {
	tests := []struct {
		style string
		want  float64
		ok    bool
	}{
		{"width: 120px", 120, true},
		{"width: 12.5PX", 12.5, true},
		{"width: 0", 0, true},
		{"width: 50%", 0, false},
		{"width: auto", 0, false},
		{"width: -4px", 0, false},
		{"width: NaNpx", 0, false},
		{"height: 4px", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInline(tt.style).Pixels("width")
		assert.Equal(t, tt.ok, ok, tt.style)
		assert.Equal(t, tt.want, got, tt.style)
	}
}
