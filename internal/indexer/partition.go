package indexer

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

// Chunk sizes in runes. Text under a heading is packed up to MaxChars,
// a new chunk is started once NewAfterChars is passed, and chunks shorter
// than CombineUnderChars are merged with their neighbour.
const (
	defaultMaxChars          = 4000
	defaultNewAfterChars     = 3800
	defaultCombineUnderChars = 2000
)

// PartitionOptions bounds text chunk sizes.
type PartitionOptions struct {
	MaxChars          int
	NewAfterChars     int
	CombineUnderChars int
}

// DefaultPartitionOptions returns the sizes used for ingestion.
func DefaultPartitionOptions() PartitionOptions {
	return PartitionOptions{
		MaxChars:          defaultMaxChars,
		NewAfterChars:     defaultNewAfterChars,
		CombineUnderChars: defaultCombineUnderChars,
	}
}

// Partitioner splits documents into text, table and image elements.
type Partitioner struct {
	parser goldmark.Markdown
	opts   PartitionOptions
}

// NewPartitioner creates a partitioner. Zero option fields take defaults.
func NewPartitioner(opts PartitionOptions) *Partitioner {
	def := DefaultPartitionOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.NewAfterChars <= 0 || opts.NewAfterChars > opts.MaxChars {
		opts.NewAfterChars = min(def.NewAfterChars, opts.MaxChars)
	}
	if opts.CombineUnderChars < 0 {
		opts.CombineUnderChars = 0
	}
	return &Partitioner{
		parser: goldmark.New(goldmark.WithExtensions(extension.Table)),
		opts:   opts,
	}
}

// Supported reports whether the file extension of name can be partitioned.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Partition extracts elements from a document, choosing the reader by extension.
func (p *Partitioner) Partition(name string, content []byte) ([]Element, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%w: %s", service.ErrUnsupportedFormat, filepath.Ext(name))
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("document %s is not valid UTF-8", name)
	}

	var items []item
	if strings.ToLower(filepath.Ext(name)) == ".txt" {
		items = plainTextItems(string(content))
	} else {
		items = p.markdownItems(content)
	}
	return p.chunkByTitle(items), nil
}

type itemKind int

const (
	itemHeading itemKind = iota
	itemParagraph
	itemTable
	itemImage
)

type item struct {
	kind   itemKind
	text   string
	source string
}

func plainTextItems(content string) []item {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var items []item
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		items = append(items, item{kind: itemParagraph, text: para})
	}
	return items
}

// markdownItems walks the top-level blocks of a markdown document.
func (p *Partitioner) markdownItems(content []byte) []item {
	doc := p.parser.Parser().Parse(text.NewReader(content))

	var items []item
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if t := inlineText(node, content); t != "" {
				items = append(items, item{kind: itemHeading, text: t})
			}
		case *east.Table:
			items = append(items, item{kind: itemTable, text: tableText(node, content)})
		case *ast.Paragraph, *ast.TextBlock:
			if t := inlineText(node, content); t != "" {
				items = append(items, item{kind: itemParagraph, text: t})
			}
			items = append(items, imageItems(node, content)...)
		case *ast.List:
			if t := listText(node, content); t != "" {
				items = append(items, item{kind: itemParagraph, text: t})
			}
			items = append(items, imageItems(node, content)...)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if t := strings.TrimRight(linesText(node, content), "\n"); t != "" {
				items = append(items, item{kind: itemParagraph, text: t})
			}
		case *ast.Blockquote:
			if t := inlineText(node, content); t != "" {
				items = append(items, item{kind: itemParagraph, text: t})
			}
		}
	}
	return items
}

// chunkByTitle packs paragraphs into text elements that never span a heading,
// a table or an image, then merges undersized neighbours.
func (p *Partitioner) chunkByTitle(items []item) []Element {
	var elements []Element
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			elements = append(elements, Element{Type: storage.BlockText, Text: strings.Join(cur, "\n\n")})
		}
		cur, curLen = nil, 0
	}
	add := func(s string) {
		n := utf8.RuneCountInString(s)
		if curLen > 0 && (curLen >= p.opts.NewAfterChars || curLen+2+n > p.opts.MaxChars) {
			flush()
		}
		if curLen > 0 {
			curLen += 2
		}
		cur = append(cur, s)
		curLen += n
	}

	for _, it := range items {
		switch it.kind {
		case itemHeading:
			flush()
			add(it.text)
		case itemParagraph:
			for _, piece := range splitOversized(it.text, p.opts.MaxChars) {
				add(piece)
			}
		case itemTable:
			flush()
			elements = append(elements, Element{Type: storage.BlockTable, Text: it.text})
		case itemImage:
			flush()
			elements = append(elements, Element{Type: storage.BlockImage, Text: it.text, Source: it.source})
		}
	}
	flush()

	return p.combineSmall(elements)
}

func (p *Partitioner) combineSmall(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		if n := len(out); n > 0 && el.Type == storage.BlockText && out[n-1].Type == storage.BlockText {
			prev := out[n-1].Text
			prevLen := utf8.RuneCountInString(prev)
			if prevLen < p.opts.CombineUnderChars && prevLen+2+utf8.RuneCountInString(el.Text) <= p.opts.MaxChars {
				out[n-1].Text = prev + "\n\n" + el.Text
				continue
			}
		}
		out = append(out, el)
	}
	return out
}

// splitOversized cuts s into pieces of at most limit runes, preferring whitespace.
func splitOversized(s string, limit int) []string {
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}

	var pieces []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			pieces = append(pieces, piece)
		}
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

// inlineText collects the visible text of n, skipping image alt text.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.Paragraph, *ast.TextBlock:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func listText(list *ast.List, content []byte) string {
	var lines []string
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		if t := inlineText(li, content); t != "" {
			lines = append(lines, "- "+t)
		}
	}
	return strings.Join(lines, "\n")
}

func linesText(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	return b.String()
}

// tableText renders a table as pipe-separated rows, header first.
func tableText(table *east.Table, content []byte) string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, content))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}

func imageItems(n ast.Node, content []byte) []item {
	var items []item
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := node.(*ast.Image); ok && entering {
			alt := strings.TrimSpace(inlineAlt(img, content))
			items = append(items, item{kind: itemImage, text: alt, source: string(img.Destination)})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return items
}

func inlineAlt(img *ast.Image, content []byte) string {
	var b strings.Builder
	for c := img.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(content))
		}
	}
	return b.String()
}
