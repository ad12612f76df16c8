package adapter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// Node kinds of the Rust grammar the pipeline looks at.
const (
	RustUse          = "use_declaration"
	RustExternCrate  = "extern_crate_declaration"
	RustFunction     = "function_item"
	RustModule       = "mod_item"
	RustImpl         = "impl_item"
	RustTrait        = "trait_item"
	RustAttribute    = "attribute_item"
	RustLineComment  = "line_comment"
	RustBlockComment = "block_comment"
)

const maxReportedSyntaxErrors = 5

// Point is a zero-based row/column position.
type Point struct {
	Row    int
	Column int
}

// UseSpec is a single imported name after grouped imports are expanded.
// `use a::{b, c as d, e::*}` yields three specs.
type UseSpec struct {
	Segments []string
	Alias    string
	Glob     bool
}

// Leaf is the name the import binds: the alias, the last segment, or "*".
func (u UseSpec) Leaf() string {
	if u.Glob {
		return "*"
	}

	if u.Alias != "" {
		return u.Alias
	}

	if len(u.Segments) == 0 {
		return ""
	}

	return u.Segments[len(u.Segments)-1]
}

// Prefix is the path without the leaf. For globs this is the whole path.
func (u UseSpec) Prefix() []string {
	if u.Glob || len(u.Segments) == 0 {
		return u.Segments
	}

	return u.Segments[:len(u.Segments)-1]
}

// Parts is the path as a flat list, with a trailing "*" for globs.
func (u UseSpec) Parts() []string {
	parts := append([]string{}, u.Segments...)
	if u.Glob {
		parts = append(parts, "*")
	}

	return parts
}

// String renders the spec as a single use declaration.
func (u UseSpec) String() string {
	s := "use " + strings.Join(u.Parts(), "::")
	if u.Alias != "" {
		s += " as " + u.Alias
	}

	return s + ";"
}

// FnSignature is the header of a function item.
type FnSignature struct {
	Name       string
	Params     string
	ReturnType string
}

func (s FnSignature) String() string {
	ret := s.ReturnType
	if ret == "" {
		ret = "()"
	}

	return fmt.Sprintf("fn %s%s -> %s", s.Name, s.Params, ret)
}

// RustBlock is the `{ ... }` body of a module, impl or trait.
type RustBlock struct {
	Open  Point
	Close Point
	Items []RustItem
}

// RustItem is a declaration with the positions needed to edit the source by
// lines. Attributes preceding an item are folded into it.
type RustItem struct {
	Kind       string
	Name       string
	Text       string
	Start      Point
	End        Point
	AttrStart  Point
	Attributes []string
	Imports    []UseSpec
	Alias      string
	Signature  *FnSignature
	Body       string
	Block      *RustBlock
}

// HasAttribute reports whether any attribute contains substr.
func (i RustItem) HasAttribute(substr string) bool {
	for _, a := range i.Attributes {
		if strings.Contains(a, substr) {
			return true
		}
	}

	return false
}

// IsComment reports whether the item is a comment.
func (i RustItem) IsComment() bool {
	return i.Kind == RustLineComment || i.Kind == RustBlockComment
}

// RustFile is a parsed Rust source file.
type RustFile struct {
	Items  []RustItem
	Errors []Point
}

// HasErrors reports whether the parser had to recover from syntax errors.
func (f *RustFile) HasErrors() bool {
	return len(f.Errors) > 0
}

// Module returns the first top-level module whose name is one of names.
func (f *RustFile) Module(names ...string) (RustItem, bool) {
	for _, item := range f.Items {
		if item.Kind != RustModule {
			continue
		}

		for _, n := range names {
			if item.Name == n {
				return item, true
			}
		}
	}

	return RustItem{}, false
}

// Functions returns every function item in the file, including those nested
// in modules, impls and traits.
func (f *RustFile) Functions() []RustItem {
	var out []RustItem

	var walk func(items []RustItem)

	walk = func(items []RustItem) {
		for _, item := range items {
			if item.Kind == RustFunction {
				out = append(out, item)
			}

			if item.Block != nil {
				walk(item.Block.Items)
			}
		}
	}

	walk(f.Items)

	return out
}

// RustFileAdapter encapsulates tree-sitter parsing so the domain layer works
// on plain structures with line positions.
type RustFileAdapter interface {
	// Parse builds a RustFile. Syntax errors are reported through
	// RustFile.Errors rather than as an error.
	Parse(ctx context.Context, src []byte) (*RustFile, error)
}

// TreeSitterRustAdapter implements RustFileAdapter with tree-sitter-rust.
type TreeSitterRustAdapter struct{}

// NewTreeSitterRustAdapter constructs a TreeSitterRustAdapter.
func NewTreeSitterRustAdapter() *TreeSitterRustAdapter {
	return &TreeSitterRustAdapter{}
}

// Parse implements RustFileAdapter. A new parser is created per call so the
// adapter is safe for concurrent use.
func (a *TreeSitterRustAdapter) Parse(ctx context.Context, src []byte) (*RustFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	file := &RustFile{}

	if root.HasError() {
		collectSyntaxErrors(root, &file.Errors)
	}

	file.Items = convertItems(root, src)

	return file, nil
}

func collectSyntaxErrors(node *sitter.Node, out *[]Point) {
	if node == nil || len(*out) >= maxReportedSyntaxErrors {
		return
	}

	if node.IsError() || node.IsMissing() {
		*out = append(*out, pointOf(node.StartPoint()))
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), out)
	}
}

func convertItems(parent *sitter.Node, src []byte) []RustItem {
	var (
		items        []RustItem
		pendingAttrs []string
		attrStart    *Point
	)

	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)

		if child.Type() == RustAttribute {
			if attrStart == nil {
				p := pointOf(child.StartPoint())
				attrStart = &p
			}

			pendingAttrs = append(pendingAttrs, child.Content(src))

			continue
		}

		item := convertItem(child, src)

		if !item.IsComment() {
			item.Attributes = pendingAttrs
			if attrStart != nil {
				item.AttrStart = *attrStart
			}

			pendingAttrs = nil
			attrStart = nil
		}

		items = append(items, item)
	}

	return items
}

func convertItem(node *sitter.Node, src []byte) RustItem {
	item := RustItem{
		Kind:      node.Type(),
		Text:      node.Content(src),
		Start:     pointOf(node.StartPoint()),
		End:       pointOf(node.EndPoint()),
		AttrStart: pointOf(node.StartPoint()),
	}

	if name := node.ChildByFieldName("name"); name != nil {
		item.Name = name.Content(src)
	}

	switch item.Kind {
	case RustUse:
		if arg := node.ChildByFieldName("argument"); arg != nil {
			item.Imports = expandUse(arg, nil, src)
		}
	case RustExternCrate:
		if alias := node.ChildByFieldName("alias"); alias != nil {
			item.Alias = alias.Content(src)
		}
	case RustFunction:
		sig := &FnSignature{Name: item.Name}
		if params := node.ChildByFieldName("parameters"); params != nil {
			sig.Params = params.Content(src)
		}

		if ret := node.ChildByFieldName("return_type"); ret != nil {
			sig.ReturnType = ret.Content(src)
		}

		item.Signature = sig

		if body := node.ChildByFieldName("body"); body != nil {
			item.Body = body.Content(src)
		}
	case RustModule, RustImpl, RustTrait:
		if body := node.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
			item.Block = &RustBlock{
				Open:  pointOf(body.StartPoint()),
				Close: pointOf(body.EndPoint()),
				Items: convertItems(body, src),
			}
		}
	}

	return item
}

// expandUse flattens a use tree into single-name specs.
func expandUse(node *sitter.Node, prefix []string, src []byte) []UseSpec {
	switch node.Type() {
	case "use_as_clause":
		path := node.ChildByFieldName("path")
		alias := node.ChildByFieldName("alias")

		if path == nil {
			return nil
		}

		specs := expandUse(path, prefix, src)
		if alias != nil {
			for i := range specs {
				specs[i].Alias = alias.Content(src)
			}
		}

		return specs
	case "use_wildcard":
		segments := append([]string{}, prefix...)
		if node.NamedChildCount() > 0 {
			segments = append(segments, splitPath(node.NamedChild(0).Content(src))...)
		}

		return []UseSpec{{Segments: segments, Glob: true}}
	case "scoped_use_list":
		newPrefix := append([]string{}, prefix...)
		if path := node.ChildByFieldName("path"); path != nil {
			newPrefix = append(newPrefix, splitPath(path.Content(src))...)
		}

		list := node.ChildByFieldName("list")
		if list == nil {
			return nil
		}

		return expandUse(list, newPrefix, src)
	case "use_list":
		var specs []UseSpec

		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == RustLineComment || child.Type() == RustBlockComment {
				continue
			}

			specs = append(specs, expandUse(child, prefix, src)...)
		}

		return specs
	case "self":
		// `a::b::{self}` binds `b`.
		if len(prefix) > 0 {
			return []UseSpec{{Segments: append([]string{}, prefix...)}}
		}

		return []UseSpec{{Segments: []string{"self"}}}
	default:
		segments := append(append([]string{}, prefix...), splitPath(node.Content(src))...)
		return []UseSpec{{Segments: segments}}
	}
}

func splitPath(s string) []string {
	raw := strings.Split(s, "::")
	out := make([]string, 0, len(raw))

	for _, seg := range raw {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}

	return out
}

func pointOf(p sitter.Point) Point {
	return Point{Row: int(p.Row), Column: int(p.Column)}
}
