package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"studyrag/internal/corpus"
)

// maxHeaderDepth is the deepest heading level that starts a new chunk.
// Deeper headings are folded into the surrounding chunk text.
const maxHeaderDepth = 3

// ChunkID derives the deterministic chunk id for (collection, filename, seq).
// Identical input documents always produce identical ids, which makes
// re-ingestion idempotent.
func ChunkID(collection, filename string, seq int) string {
	return fmt.Sprintf("%s_%s_chunk_%d", collection, filename, seq)
}

// Chunker converts a raw document into an ordered sequence of chunks with
// structural metadata, splitting at heading boundaries via goldmark AST
// parsing. PDF documents are reduced to plain text first.
type Chunker struct {
	parser goldmark.Markdown
}

// NewChunker creates a chunker.
func NewChunker() *Chunker {
	return &Chunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// ChunkDocument splits content into chunks for the given collection.
// It returns an empty slice (not an error) when the document contains no
// extractable text, and an error wrapping ErrIngestion when the underlying
// format cannot be parsed at all.
func (c *Chunker) ChunkDocument(content []byte, collection, filename string) ([]corpus.Chunk, error) {
	if isPDF(content, filename) {
		extracted, err := extractPDFText(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIngestion, filename, err)
		}
		content = []byte(extracted)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return []corpus.Chunk{}, nil
	}

	return c.chunkMarkdown(content, collection, filename), nil
}

// headerInfo tracks heading level and text for building header paths.
type headerInfo struct {
	level int
	text  string
}

// chunkMarkdown walks the top-level AST and starts a new chunk at each
// heading of level 1-3, carrying the enclosing heading texts as metadata.
func (c *Chunker) chunkMarkdown(content []byte, collection, filename string) []corpus.Chunk {
	reader := text.NewReader(content)
	doc := c.parser.Parser().Parse(reader)

	var chunks []corpus.Chunk
	var headerStack []headerInfo
	var buf strings.Builder

	flush := func() {
		chunkText := strings.TrimSpace(buf.String())
		buf.Reset()
		if chunkText == "" {
			return
		}
		seq := len(chunks)
		headerPath := make([]string, len(headerStack))
		for i, h := range headerStack {
			headerPath[i] = h.text
		}
		chunks = append(chunks, corpus.Chunk{
			ID:         ChunkID(collection, filename, seq),
			Text:       chunkText,
			Source:     filename,
			Collection: collection,
			Sequence:   seq,
			HeaderPath: headerPath,
		})
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok && heading.Level <= maxHeaderDepth {
			flush()

			// Pop headings of equal or higher level, then push this one.
			for len(headerStack) > 0 && headerStack[len(headerStack)-1].level >= heading.Level {
				headerStack = headerStack[:len(headerStack)-1]
			}
			headerStack = append(headerStack, headerInfo{
				level: heading.Level,
				text:  nodeText(heading, content),
			})
			continue
		}

		if blockText := nodeText(n, content); blockText != "" {
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(blockText)
		}
	}
	flush()

	return chunks
}

// nodeText extracts the text content of a node and its children. Block-level
// children are separated by newlines, table cells by pipes.
func nodeText(n ast.Node, content []byte) string {
	var builder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(content))
		case *ast.String:
			builder.Write(v.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				builder.Write(line.Value(content))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.ListItem, *ast.Heading:
			if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteString("\n")
			}
		default:
			kindName := node.Kind().String()
			if strings.Contains(kindName, "TableRow") || strings.Contains(kindName, "TableHeader") {
				if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
					builder.WriteString("\n")
				}
			} else if strings.Contains(kindName, "TableCell") {
				if !strings.HasSuffix(builder.String(), "\n") && builder.Len() > 0 {
					builder.WriteString(" | ")
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(builder.String())
}
