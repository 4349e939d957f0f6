package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is the per-page view of a PDF used for text assembly.
type pageSource interface {
	NumPage() int
	// PageText returns the plain text of page i (1-based); null pages return "".
	PageText(i int) (string, error)
}

type ledongthucPages struct {
	r *pdf.Reader
}

func (p ledongthucPages) NumPage() int { return p.r.NumPage() }

func (p ledongthucPages) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// PDFText returns the trimmed text of every page that yields any, in page order, joined by "\n".
// The parser panics on some malformed content streams; that surfaces as an error.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extract pdf: malformed document: %v", rec)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract pdf: %w", err)
	}
	return joinPages(ledongthucPages{r: r})
}

func joinPages(src pageSource) (string, error) {
	var pages []string
	for i := 1; i <= src.NumPage(); i++ {
		text, err := src.PageText(i)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}
