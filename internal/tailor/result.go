package tailor

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects how the model is asked to shape its reply.
type Format string

const (
	// FormatHeaders asks for the literal section-header reply and parses it best-effort.
	FormatHeaders Format = "headers"
	// FormatJSON asks for one JSON object and rejects anything that does not conform.
	FormatJSON Format = "json"
)

// Reply section headers.
const (
	HeaderScore       = "Matching Score:"
	HeaderKeywords    = "Missing Keywords:"
	HeaderTailoredCV  = "Tailored CV:"
	HeaderCoverLetter = "Cover Letter:"
)

// ErrMalformedResponse is returned when a structured reply does not match the expected shape.
var ErrMalformedResponse = errors.New("malformed model response")

// Result is the parsed outcome of one tailoring completion.
type Result struct {
	MatchingScore   *int     `json:"matchingScore"`
	MissingKeywords []string `json:"missingKeywords"`
	TailoredCV      string   `json:"tailoredCv"`
	CoverLetter     string   `json:"coverLetter"`
}

// ParseFormat maps a configuration value onto a Format.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatHeaders:
		return FormatHeaders, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown response format %q", raw)
	}
}

// Prompt builds the instruction for the given reply format.
func Prompt(format Format, resume, job string) string {
	if format == FormatHeaders {
		return BuildPrompt(resume, job)
	}
	return BuildStructuredPrompt(resume, job)
}

// Parse extracts a Result from a raw reply in the given format.
// Header replies never fail; structured replies fail with ErrMalformedResponse.
func Parse(format Format, raw string) (Result, error) {
	if format == FormatHeaders {
		return ParseHeaders(raw), nil
	}
	return ParseStructured(raw)
}
