package tagtpl

import (
	"testing"
)

func TestExpandBlocks_LoopPerRecord(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("PostList", []Record{
		{"PostItemName": "first & foremost"},
		{"PostItemName": "second"},
	})

	tpl := "[tag::PostList--Block][tag::PostList--Loop][tag::PostItemName];[/tag::PostList--Loop][/tag::PostList--Block]"
	got := r.Render(tpl)
	want := "first &amp; foremost;second;"
	if got != want {
		t.Errorf("loop expansion = %q, want %q", got, want)
	}
}

func TestExpandBlocks_UnboundBlockRawPassthrough(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Renderer)
	}{
		{name: "key absent", setup: func(r *Renderer) {}},
		{name: "empty list", setup: func(r *Renderer) { r.Assign("Nav", []Record{}) }},
		{name: "scalar under block name", setup: func(r *Renderer) { r.Assign("Nav", 3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			tt.setup(r)
			tpl := "[tag::Nav--Block] inner content [/tag::Nav--Block]"
			if got := r.Render(tpl); got != tpl {
				t.Errorf("unbound block should pass through raw, got %q", got)
			}
		})
	}
}

func TestExpandBlocks_SurroundingContentKeptIterationsAppended(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("Rows", []Record{{"n": "a"}, {"n": "b"}})

	tpl := "[tag::Rows--Block]<ul>[tag::Rows--Loop]<li>[tag::n]</li>[/tag::Rows--Loop]</ul>[/tag::Rows--Block]"
	got := r.Render(tpl)
	// Non-loop content passes through untouched; the concatenated
	// iterations are appended after it.
	want := "<ul></ul><li>a</li><li>b</li>"
	if got != want {
		t.Errorf("block expansion = %q, want %q", got, want)
	}
}

func TestExpandBlocks_MismatchedLoopNameContributesNothing(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("Posts", []Record{{"x": "1"}})

	tpl := "[tag::Posts--Block]head [tag::Other--Loop][tag::x][/tag::Other--Loop] tail[/tag::Posts--Block]"
	got := r.Render(tpl)
	if got != "head  tail" {
		t.Errorf("loop with different name should be removed, got %q", got)
	}
}

func TestExpandBlocks_MissingRecordFieldLeftUnreplaced(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("Items", []Record{{"present": "yes"}})

	tpl := "[tag::Items--Block][tag::Items--Loop][tag::present]-[tag::absent][/tag::Items--Loop][/tag::Items--Block]"
	got := r.Render(tpl)
	if got != "yes-[tag::absent]" {
		t.Errorf("missing field placeholder should remain, got %q", got)
	}
}

func TestExpandBlocks_CloseNameMustMatch(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("A", []Record{{"f": "v"}})

	// A close tag with a different name does not terminate the block, so
	// this open tag never completes and everything passes through.
	tpl := "[tag::A--Block]content[/tag::B--Block]"
	if got := r.Render(tpl); got != tpl {
		t.Errorf("mismatched close should not expand, got %q", got)
	}
}

func TestExpandBlocks_FieldValuesAlwaysEscaped(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("L", []Record{{"f": "<i>raw</i>"}})

	// Unlike the variable pass, item fields get no markup passthrough.
	tpl := "[tag::L--Block][tag::L--Loop][tag::f][/tag::L--Loop][/tag::L--Block]"
	got := r.Render(tpl)
	want := "&lt;i&gt;raw&lt;/i&gt;"
	if got != want {
		t.Errorf("loop field should be escaped unconditionally, got %q", got)
	}
}

func TestExpandBlocks_TwoIndependentBlocks(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("First", []Record{{"v": "1"}})

	tpl := "[tag::First--Block][tag::First--Loop][tag::v][/tag::First--Loop][/tag::First--Block] mid [tag::Second--Block]keep[/tag::Second--Block]"
	got := r.Render(tpl)
	want := "1 mid [tag::Second--Block]keep[/tag::Second--Block]"
	if got != want {
		t.Errorf("mixed bound/unbound blocks = %q, want %q", got, want)
	}
}
