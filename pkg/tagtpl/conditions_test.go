package tagtpl

import (
	"testing"
)

func TestConditional_BranchSelection(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *Renderer)
		template string
		want     string
	}{
		{
			name: "else wins when no condition holds",
			setup: func(r *Renderer) {
				r.Assign("num_1", 5)
				r.Assign("num_2", 10)
			},
			template: "[tag::if($num_1 > $num_2)]A[tag::elseif($num_1 == $num_2)]B[tag::else]C[tag::endif]",
			want:     "C",
		},
		{
			name: "if branch wins first",
			setup: func(r *Renderer) {
				r.Assign("num_1", 50)
				r.Assign("num_2", 10)
			},
			template: "[tag::if($num_1 > $num_2)]A[tag::elseif($num_1 == $num_2)]B[tag::else]C[tag::endif]",
			want:     "A",
		},
		{
			name: "elseif branch wins",
			setup: func(r *Renderer) {
				r.Assign("num_1", 10)
				r.Assign("num_2", 10)
			},
			template: "[tag::if($num_1 > $num_2)]A[tag::elseif($num_1 == $num_2)]B[tag::else]C[tag::endif]",
			want:     "B",
		},
		{
			name: "string comparison",
			setup: func(r *Renderer) {
				r.Assign("user", "bob")
			},
			template: `[tag::if($user == "bob")]hi bob[tag::else]who?[tag::endif]`,
			want:     "hi bob",
		},
		{
			name: "bare boolean is truthy",
			setup: func(r *Renderer) {
				r.Assign("enabled", true)
			},
			template: "[tag::if($enabled)]on[tag::else]off[tag::endif]",
			want:     "on",
		},
		{
			name: "list value compares as null",
			setup: func(r *Renderer) {
				r.Assign("rows", []Record{{"a": 1}})
			},
			template: "[tag::if($rows == nil)]empty[tag::else]full[tag::endif]",
			want:     "empty",
		},
		{
			name:     "undefined reference counts as false",
			setup:    func(r *Renderer) {},
			template: "[tag::if($never_assigned)]A[tag::else]B[tag::endif]",
			want:     "B",
		},
		{
			name:     "syntax error counts as false",
			setup:    func(r *Renderer) {},
			template: "[tag::if(((()]A[tag::else]B[tag::endif]",
			want:     "B",
		},
		{
			name: "branch content is trimmed",
			setup: func(r *Renderer) {
				r.Assign("on", true)
			},
			template: "[tag::if($on)]  spaced out  [tag::else]no[tag::endif]",
			want:     "spaced out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t)
			tt.setup(r)
			if got := r.Render(tt.template); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

// A conditional without a trailing else does not match the pattern and
// passes through completely untouched. This pins the mandatory-else
// limitation as observable behavior.
func TestConditional_MissingElseLeftUnprocessed(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("n", 1)

	tpl := "[tag::if($n == 1)]one[tag::endif]"
	if got := r.Render(tpl); got != tpl {
		t.Errorf("conditional without else should pass through, got %q", got)
	}
}

func TestConditional_MissingEndifLeftUnprocessed(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("n", 1)

	tpl := "[tag::if($n == 1)]one[tag::else]other"
	if got := r.Render(tpl); got != tpl {
		t.Errorf("unterminated conditional should pass through, got %q", got)
	}
}

func TestConditional_SequentialConstructs(t *testing.T) {
	r := newTestRenderer(t)
	r.Assign("a", true)
	r.Assign("b", false)

	tpl := "[tag::if($a)]1[tag::else]2[tag::endif]-[tag::if($b)]3[tag::else]4[tag::endif]"
	if got := r.Render(tpl); got != "1-4" {
		t.Errorf("sequential conditionals = %q, want %q", got, "1-4")
	}
}
