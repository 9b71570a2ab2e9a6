package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/corpora/internal/logger"
)

const (
	mimePDF  = "application/pdf"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDoc  = "application/msword"
)

// Extract converts raw file bytes into plain text. It never fails: unknown
// MIME types are treated as text, a corrupt PDF or Office file degrades to
// an empty string (logged), and invalid UTF-8 is replaced rather than
// rejected so a single bad byte does not sink a whole document.
func Extract(data []byte, mimeType string) string {
	mt := mimeType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.TrimSpace(strings.ToLower(mt))

	var text string
	switch mt {
	case mimePDF:
		text = extractPDF(data)
	case mimeDocx:
		out, _, err := docconv.ConvertDocx(bytes.NewReader(data))
		if err != nil {
			logger.New("extract").WithError(err).Warn("docx parse failed")
		} else {
			text = out
		}
	case mimeDoc:
		out, _, err := docconv.ConvertDoc(bytes.NewReader(data))
		if err != nil {
			logger.New("extract").WithError(err).Warn("doc parse failed")
		} else {
			text = out
		}
	default:
		text = string(data)
	}

	text = strings.ToValidUTF8(text, "�")
	// Postgres rejects NUL in text columns.
	return strings.ReplaceAll(text, "\x00", "")
}

// extractPDF pulls text page by page. Pages that fail to decode are skipped;
// a PDF with some unreadable pages still yields whatever text the rest has,
// and an unreadable file yields nothing.
func extractPDF(data []byte) string {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.New("extract").WithError(err).Warn("pdf parse failed")
		return ""
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := pageText(page)
		if err != nil {
			continue
		}
		if txt != "" {
			b.WriteString(txt)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// pageText recovers from panics inside the PDF library; malformed content
// streams panic instead of returning errors.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
