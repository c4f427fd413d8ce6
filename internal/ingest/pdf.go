package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// isPDF reports whether the document looks like a PDF, by extension or magic.
func isPDF(content []byte, filename string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(content, []byte("%PDF"))
}

// extractPDFText extracts the plain text of every page, pages separated by
// blank lines. Pages that fail to decode are skipped; a document that cannot
// be opened at all is an error. The pdf library panics on some malformed
// inputs, so the whole extraction runs under a recover.
func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n\n")
	}

	return builder.String(), nil
}
