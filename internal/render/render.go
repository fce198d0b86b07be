// Package render turns storage strings into display HTML and HTML into
// plain text for previews and search snippets.
//
// The HTML is produced by goldmark's renderer from an AST built out of the
// parsed document, so the storage grammar never has to be CommonMark.
package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"github.com/starford/memos/internal/document"
)

// Renderer converts documents to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	images bool
	extra  []util.PrioritizedValue
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithoutImages disables the image-URL post-pass.
func WithoutImages() Option {
	return func(r *Renderer) {
		r.images = false
	}
}

// WithNodeRenderers registers extra goldmark node renderers. A lower
// priority than 500 overrides the built-in task and reference renderers.
func WithNodeRenderers(rs ...util.PrioritizedValue) Option {
	return func(r *Renderer) {
		r.extra = append(r.extra, rs...)
	}
}

// WithLogger sets where render failures are reported. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{images: true}
	for _, opt := range opts {
		opt(r)
	}
	renderers := append([]util.PrioritizedValue{
		util.Prioritized(extension.NewTaskCheckBoxHTMLRenderer(), 500),
		util.Prioritized(&referenceRenderer{}, 500),
	}, r.extra...)
	r.md = goldmark.New(
		goldmark.WithRendererOptions(renderer.WithNodeRenderers(renderers...)),
	)
	return r
}

var defaultRenderer = New()

// Render converts a storage string to HTML with the default Renderer.
func Render(storage string) string {
	return defaultRenderer.Render(storage)
}

// Render converts a storage string to HTML. If a node renderer fails, the
// failure is logged and the storage string is shown escaped in a <pre>.
func (r *Renderer) Render(storage string) string {
	out, err := r.RenderBlocks(document.Parse(storage))
	if err != nil {
		logger := r.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("render failed", slog.String("error", err.Error()))
		return fallback(storage)
	}
	return out
}

func fallback(storage string) string {
	return `<pre class="memo-raw">` + html.EscapeString(storage) + "</pre>\n"
}

// RenderBlocks converts a block tree to HTML.
func (r *Renderer) RenderBlocks(blocks []document.Block) (string, error) {
	doc, err := buildAST(blocks)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, nil, doc); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	out := buf.String()
	if r.images {
		out = embedImages(out)
	}
	return out, nil
}

func buildAST(blocks []document.Block) (ast.Node, error) {
	doc := ast.NewDocument()
	for _, b := range blocks {
		switch b.Kind {
		case document.Paragraph:
			p := ast.NewParagraph()
			appendInline(p, b.Content)
			doc.AppendChild(doc, p)
		case document.OrderedList, document.UnorderedList, document.TaskList:
			doc.AppendChild(doc, buildList(b))
		default:
			return nil, fmt.Errorf("render: unknown block kind %q", b.Kind)
		}
	}
	return doc, nil
}

func buildList(b document.Block) ast.Node {
	marker := byte('-')
	if b.Kind == document.OrderedList {
		marker = '.'
	}
	list := ast.NewList(marker)
	list.IsTight = true
	list.Start = 1
	if b.Kind == document.TaskList {
		list.SetAttributeString("class", []byte("task-list"))
	}
	for _, it := range b.Items {
		li := ast.NewListItem(2)
		tb := ast.NewTextBlock()
		if b.Kind == document.TaskList {
			tb.AppendChild(tb, extast.NewTaskCheckBox(it.Checked))
		}
		appendInline(tb, it.Content)
		li.AppendChild(li, tb)
		list.AppendChild(list, li)
	}
	return list
}

func appendInline(parent ast.Node, in document.Inline) {
	for _, s := range in {
		switch v := s.(type) {
		case document.Text:
			target := parent
			if v.Bold {
				strong := ast.NewEmphasis(2)
				parent.AppendChild(parent, strong)
				target = strong
			}
			appendText(target, v.Value)
		case document.Reference:
			parent.AppendChild(parent, &referenceNode{ref: v})
		}
	}
}

// appendText adds s as raw strings, which goldmark HTML-escapes without
// interpreting Markdown, with a hard break for every newline.
func appendText(parent ast.Node, s string) {
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			br := ast.NewText()
			br.SetHardLineBreak(true)
			parent.AppendChild(parent, br)
		}
		if line == "" {
			continue
		}
		str := ast.NewString([]byte(line))
		str.SetRaw(true)
		parent.AppendChild(parent, str)
	}
}

// KindReference is the node kind of memo links and tags.
var KindReference = ast.NewNodeKind("Reference")

type referenceNode struct {
	ast.BaseInline
	ref document.Reference
}

func (n *referenceNode) Kind() ast.NodeKind {
	return KindReference
}

func (n *referenceNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"RefKind": string(n.ref.Kind),
		"Target":  n.ref.Target,
		"Label":   n.ref.Label,
	}, nil)
}

type referenceRenderer struct{}

func (r *referenceRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindReference, r.renderReference)
}

func (r *referenceRenderer) renderReference(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	ref := node.(*referenceNode).ref

	class, text := "memo-link-text", ref.Label
	switch ref.Kind {
	case document.RefMemo:
		if text == "" {
			text = ref.Target
		}
	case document.RefTag:
		class, text = "tag-text", "#"+ref.Target
	}

	_, _ = w.WriteString(`<span class="`)
	_, _ = w.WriteString(class)
	_, _ = w.WriteString(`" data-kind="`)
	_, _ = w.Write(util.EscapeHTML([]byte(ref.Kind)))
	_, _ = w.WriteString(`" data-value="`)
	_, _ = w.Write(util.EscapeHTML([]byte(ref.Target)))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(util.EscapeHTML([]byte(text)))
	_, _ = w.WriteString(`</span>`)
	return ast.WalkSkipChildren, nil
}
