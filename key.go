package gistcache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/gistcache/internal/util"
)

// DefaultHighlightColor is the background applied to highlighted lines.
const DefaultHighlightColor = "#ffc"

// SnippetKey identifies one embeddable unit: a gist, or one file of it.
type SnippetKey struct {
	ID   string
	File string // empty => every file of the gist
}

// Validate reports a structurally invalid key as *InputError.
func (k SnippetKey) Validate() error {
	if k.ID == "" {
		return &InputError{Field: "id", Reason: "required"}
	}
	for i := 0; i < len(k.ID); i++ {
		c := k.ID[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return &InputError{Field: "id", Value: k.ID, Reason: "only letters and digits allowed"}
		}
	}
	if strings.ContainsAny(k.File, "\r\n") {
		return &InputError{Field: "file", Value: k.File, Reason: "must be a single line"}
	}
	return nil
}

// String is the raw-tier key: "id" or "id/file".
func (k SnippetKey) String() string {
	if k.File == "" {
		return k.ID
	}
	return k.ID + "/" + k.File
}

// LineRange limits output to lines Min..Max (1-based, inclusive).
// A zero bound is open.
type LineRange struct {
	Min int
	Max int
}

// RenderOptions are the presentation settings of one embed. They never
// affect what is fetched, only how it is rendered, and are part of the
// rendered-tier key. Treat values as immutable: Highlight is not copied.
type RenderOptions struct {
	Highlight       []int
	HighlightColor  string
	Lines           LineRange
	LineStart       int // first displayed line number; 0 => Lines.Min
	ShowLineNumbers bool
	ShowMeta        bool
}

// DefaultRenderOptions shows everything with the default highlight colour.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		HighlightColor:  DefaultHighlightColor,
		ShowLineNumbers: true,
		ShowMeta:        true,
	}
}

// HighlightSet returns Highlight as a set.
func (o RenderOptions) HighlightSet() map[int]struct{} {
	set := make(map[int]struct{}, len(o.Highlight))
	for _, n := range o.Highlight {
		set[n] = struct{}{}
	}
	return set
}

// RequestHash identifies one rendered output: the snippet plus every render
// option, normalized (highlight order and duplicates do not matter).
func RequestHash(k SnippetKey, o RenderOptions) string {
	return util.HashPairs("gist", map[string]string{
		"id":                k.ID,
		"file":              k.File,
		"highlight":         joinInts(sortedUnique(o.Highlight)),
		"highlight_color":   o.HighlightColor,
		"lines":             strconv.Itoa(o.Lines.Min) + "-" + strconv.Itoa(o.Lines.Max),
		"lines_start":       strconv.Itoa(o.LineStart),
		"show_line_numbers": strconv.FormatBool(o.ShowLineNumbers),
		"show_meta":         strconv.FormatBool(o.ShowMeta),
	})
}

func sortedUnique(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
