package tagtpl

import (
	"io"
	"log/slog"
	"testing"
)

// newTestRenderer creates a Renderer with the default evaluator and config
// for a single test's scope.
func newTestRenderer(tb testing.TB) *Renderer {
	tb.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, nil, nil)
}

func TestRender_NoTagsUnchanged(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("unused", "value")

	in := "plain text with [brackets] but no recognized tags"
	if got := r.Render(in); got != in {
		t.Errorf("expected input to pass through unchanged, got %q", got)
	}
}

func TestRender_ScalarSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		template string
		want     string
	}{
		{
			name:     "plain string is escaped",
			value:    `say "hi" & wave`,
			template: "[tag::v]",
			want:     "say &#34;hi&#34; &amp; wave",
		},
		{
			name:     "markup-looking string passes through raw",
			value:    "<b>bold</b>",
			template: "[tag::v]",
			want:     "<b>bold</b>",
		},
		{
			name:     "markup heuristic false positive also passes raw",
			value:    "tuples like <a, b> are not HTML",
			template: "[tag::v]",
			want:     "tuples like <a, b> are not HTML",
		},
		{
			name:     "true stringifies as 1",
			value:    true,
			template: "flag=[tag::v]",
			want:     "flag=1",
		},
		{
			name:     "false stringifies as empty",
			value:    false,
			template: "flag=[tag::v]",
			want:     "flag=",
		},
		{
			name:     "int stringifies directly",
			value:    42,
			template: "[tag::v]",
			want:     "42",
		},
		{
			name:     "float stringifies directly",
			value:    2.5,
			template: "[tag::v]",
			want:     "2.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			r.Assign("v", tt.value)
			if got := r.Render(tt.template); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestRender_UnknownKeyLeftVerbatim(t *testing.T) {
	r := newTestRenderer(t)
	got := r.Render("hello [tag::missing] world")
	if got != "hello [tag::missing] world" {
		t.Errorf("unknown placeholder should stay verbatim, got %q", got)
	}
}

func TestRender_ListSerializedAsJSON(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("Items", []Record{
		{"id": 1, "name": "first"},
		{"id": 2, "name": "second"},
	})

	got := r.Render("[tag::Items]")
	want := `[{"id":1,"name":"first"},{"id":2,"name":"second"}]`
	if got != want {
		t.Errorf("list placeholder = %q, want %q", got, want)
	}
}

func TestRender_EveryOccurrenceReplaced(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("word", "echoed")
	got := r.Render("[tag::word] and [tag::word]")
	if got != "echoed and echoed" {
		t.Errorf("expected both occurrences replaced, got %q", got)
	}
}

// Data keys are spliced into the match pattern without quoting, so a key
// carrying regex metacharacters matches whatever its pattern form means.
// This pins the quirk rather than fixing it.
func TestRender_MetacharKeyMatchesAsPattern(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("it.m", "V")
	got := r.Render("[tag::itXm]")
	if got != "V" {
		t.Errorf("dot in key should match any character, got %q", got)
	}
}

func TestRender_ReplacementValueIsLiteral(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("v", "cost is $1")
	got := r.Render("[tag::v]")
	if got != "cost is $1" {
		t.Errorf("replacement text must not be expanded, got %q", got)
	}
}
