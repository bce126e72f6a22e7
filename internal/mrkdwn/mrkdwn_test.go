package mrkdwn

import "testing"

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"plain", "Hello there", "Hello there"},
		{"bold", "This is **important**", "This is *important*"},
		{"italic", "This is *subtle*", "This is _subtle_"},
		{"underscore italic", "This is _subtle_", "This is _subtle_"},
		{"strike", "This is ~~gone~~", "This is ~gone~"},
		{"link", "Read [the docs](https://example.com/docs)", "Read <https://example.com/docs|the docs>"},
		{"bare url", "See https://example.com now", "See <https://example.com> now"},
		{"inline code", "Run `go test`", "Run `go test`"},
		{"heading", "# Solar power", "*Solar power*"},
		{"bold heading", "## **Wind**", "*Wind*"},
		{"escape", "a < b & c > d", "a &lt; b &amp; c &gt; d"},
		{"bullets", "- one\n- two", "• one\n• two"},
		{"ordered", "1. one\n2. two", "1. one\n2. two"},
		{"ordered start", "3. three\n4. four", "3. three\n4. four"},
		{"nested list", "- a\n  - b", "• a\n    • b"},
		{"blockquote", "> quoted", "> quoted"},
		{"fence", "```go\nfmt.Println(1)\n```", "```\nfmt.Println(1)\n```"},
		{"paragraphs", "# Title\n\nHello **world** 🌍", "*Title*\n\nHello *world* 🌍"},
		{"soft break", "line one\nline two", "line one\nline two"},
		{"rule", "above\n\n---\n\nbelow", "above\n\n───\n\nbelow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Convert(tt.in); got != tt.want {
				t.Fatalf("Convert(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvert_Table(t *testing.T) {
	in := "| Source | Share |\n| --- | --- |\n| Wind | 30% |"
	want := "*Source* | *Share*\nWind | 30%"
	if got := Convert(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
