package jobdesc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"cv-tailor/internal/llm"
	"cv-tailor/internal/tailor"
)

// Breakdown is the structured view of a job description.
type Breakdown struct {
	AboutCompany     string   `json:"aboutCompany"`
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	Experience       string   `json:"experience"`
	Skills           []string `json:"skills"`
}

const breakdownTemperature = 0.3

const breakdownPrompt = `Given the following job description, extract these components:

1. About the Company: a short paragraph.
2. Role Summary / Responsibilities: a list of short sentences.
3. Requirements: a list of short sentences.
4. Experience Required: one short sentence, for example "5+ years backend development".
5. Skills: a list of 1-2 word items.

Respond with one JSON object with the keys "aboutCompany", "responsibilities",
"requirements", "experience" and "skills". Use empty strings or empty lists for
anything the description does not mention.

Job Description:
`

// Analyzer asks the model for a Breakdown.
type Analyzer struct {
	completer llm.Completer
}

// NewAnalyzer wraps a completer.
func NewAnalyzer(c llm.Completer) *Analyzer {
	return &Analyzer{completer: c}
}

// Breakdown extracts company, responsibilities, requirements, experience and skills.
func (a *Analyzer) Breakdown(ctx context.Context, description string) (out Breakdown, err error) {
	if strings.TrimSpace(description) == "" {
		err = errors.New("job description is empty")
		return out, err
	}

	resp, err := a.completer.Complete(ctx, llm.Request{
		System:      tailor.SystemInstruction,
		Prompt:      breakdownPrompt + description + "\n",
		Temperature: breakdownTemperature,
		JSON:        true,
	})
	if err != nil {
		err = errors.Wrap(err, "job description breakdown request failed")
		return out, err
	}

	if err = json.Unmarshal([]byte(tailor.StripCodeFence(resp.Text)), &out); err != nil {
		err = errors.Wrapf(tailor.ErrMalformedResponse, "job description breakdown: %v", err)
		return out, err
	}
	out.Skills = compact(out.Skills)
	out.Responsibilities = compact(out.Responsibilities)
	out.Requirements = compact(out.Requirements)
	return out, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
