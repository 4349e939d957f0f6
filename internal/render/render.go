package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
)

// Mode controls what happens when text does not fit on one page.
type Mode string

const (
	// ModeOnePage drops lines past the first page and flags the layout as truncated.
	ModeOnePage Mode = "one_page"
	// ModePaginate flows overflow onto further pages.
	ModePaginate Mode = "paginate"
)

// Options configures page geometry and typography.
type Options struct {
	Mode       Mode
	PageSize   string
	MarginMM   float64
	FontFamily string
	FontSizePt float64
	LineHeight float64
	Title      string
}

// DefaultOptions returns A4, 15mm margins, 11pt Helvetica on 6mm lines.
func DefaultOptions() Options {
	return Options{
		Mode:       ModePaginate,
		PageSize:   "A4",
		MarginMM:   15,
		FontFamily: "Helvetica",
		FontSizePt: 11,
		LineHeight: 6,
	}
}

// ParseMode maps a configuration value onto a Mode.
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeOnePage)) {
		return ModeOnePage
	}
	return ModePaginate
}

// Line is one wrapped output line, encoded as drawn (cp1252).
type Line struct {
	Text string
	Bold bool
	Page int
}

// Layout describes where each line landed.
type Layout struct {
	Lines        []Line
	Pages        int
	LinesPerPage int
	Truncated    bool
	DroppedLines int
}

// Output is a rendered document.
type Output struct {
	PDF    []byte
	Layout Layout
}

// Renderer lays out plain text as a PDF.
type Renderer struct {
	opts Options
}

// New returns a renderer, filling zero options from DefaultOptions.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.PageSize == "" {
		opts.PageSize = def.PageSize
	}
	if opts.MarginMM <= 0 {
		opts.MarginMM = def.MarginMM
	}
	if opts.FontFamily == "" {
		opts.FontFamily = def.FontFamily
	}
	if opts.FontSizePt <= 0 {
		opts.FontSizePt = def.FontSizePt
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = def.LineHeight
	}
	return &Renderer{opts: opts}
}

// Layout computes line placement without producing bytes.
func (r *Renderer) Layout(text string) (Layout, error) {
	_, layout, err := r.build(text)
	return layout, err
}

// Render lays out and encodes the document.
func (r *Renderer) Render(text string) (Output, error) {
	doc, layout, err := r.build(text)
	if err != nil {
		return Output{}, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return Output{}, fmt.Errorf("render pdf: %w", err)
	}
	return Output{PDF: buf.Bytes(), Layout: layout}, nil
}

func (r *Renderer) build(text string) (*fpdf.Fpdf, Layout, error) {
	o := r.opts
	doc := fpdf.New("P", "mm", o.PageSize, "")
	doc.SetMargins(o.MarginMM, o.MarginMM, o.MarginMM)
	doc.SetAutoPageBreak(false, o.MarginMM)
	doc.SetCreationDate(time.Unix(0, 0).UTC())
	if o.Title != "" {
		doc.SetTitle(o.Title, true)
	}
	translate := doc.UnicodeTranslatorFromDescriptor("")

	width, pageH := doc.GetPageSize()
	printable := width - 2*o.MarginMM
	perPage := int(math.Floor((pageH - 2*o.MarginMM) / o.LineHeight))
	if perPage < 1 {
		return nil, Layout{}, fmt.Errorf("render pdf: page too small for line height %.1fmm", o.LineHeight)
	}

	wrapped := r.wrap(doc, translate, text, printable)

	layout := Layout{LinesPerPage: perPage, Pages: 1}
	doc.AddPage()
	row := 0
	for i, line := range wrapped {
		if row == perPage {
			if o.Mode == ModeOnePage {
				layout.Truncated = true
				layout.DroppedLines = len(wrapped) - i
				break
			}
			doc.AddPage()
			layout.Pages++
			row = 0
		}
		style := ""
		if line.Bold {
			style = "B"
		}
		doc.SetFont(o.FontFamily, style, o.FontSizePt)
		doc.SetXY(o.MarginMM, o.MarginMM+float64(row)*o.LineHeight)
		doc.CellFormat(printable, o.LineHeight, line.Text, "", 0, "L", false, 0, "")
		line.Page = layout.Pages
		layout.Lines = append(layout.Lines, line)
		row++
	}

	if err := doc.Error(); err != nil {
		return nil, Layout{}, fmt.Errorf("render pdf: %w", err)
	}
	return doc, layout, nil
}

// wrap splits every input line to the printable width. Blank input lines stay blank.
func (r *Renderer) wrap(doc *fpdf.Fpdf, translate func(string) string, text string, width float64) []Line {
	var out []Line
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		bold := IsHeading(raw)
		style := ""
		if bold {
			style = "B"
		}
		doc.SetFont(r.opts.FontFamily, style, r.opts.FontSizePt)

		encoded := translate(strings.TrimRight(raw, " \t"))
		if strings.TrimSpace(encoded) == "" {
			out = append(out, Line{})
			continue
		}
		for _, part := range doc.SplitLines([]byte(encoded), width) {
			out = append(out, Line{Text: string(part), Bold: bold})
		}
	}
	return out
}

// IsHeading reports whether a line is drawn bold: it ends with a colon, or it
// has at least one letter and no lowercase letters.
func IsHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, ":") {
		return true
	}
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
