package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXText returns paragraph text of a .docx file, one paragraph per line.
func DOCXText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("extract docx: empty data")
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract docx: %w", err)
	}
	defer doc.Close()

	return paragraphsFromXML(doc.Editable().GetContent()), nil
}

// paragraphsFromXML keeps <w:t> character data and breaks lines at paragraph and <w:br/> ends.
func paragraphsFromXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return strings.TrimSpace(buf.String())
		}
		switch t := tok.(type) {
		case xml.CharData:
			if inText {
				buf.WriteString(string(t))
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "br":
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
