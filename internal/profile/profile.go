package profile

import (
	"regexp"
	"strings"
)

// Countries is the list offered for the profile country field.
var Countries = []string{
	"United Kingdom", "United States", "Canada", "India", "Germany",
	"France", "Australia", "Netherlands", "Singapore", "United Arab Emirates",
}

// Profile is contact information found in résumé text.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Country  string `json:"country,omitempty"`
}

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	phoneRe    = regexp.MustCompile(`\+?\d[\d \-()]{7,}`)
	linkedinRe = regexp.MustCompile(`(https?://)?(www\.)?linkedin\.com/\S+`)
	githubRe   = regexp.MustCompile(`(https?://)?(www\.)?github\.com/\S+`)
)

// Extract takes the first line as the name and the first match of each contact pattern.
func Extract(text string) Profile {
	text = strings.TrimLeft(text, " \t\r\n")
	name := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		name = text[:i]
	}
	return Profile{
		Name:     strings.TrimSpace(name),
		Email:    emailRe.FindString(text),
		Phone:    strings.TrimSpace(phoneRe.FindString(text)),
		LinkedIn: strings.TrimRight(linkedinRe.FindString(text), ".,;)"),
		GitHub:   strings.TrimRight(githubRe.FindString(text), ".,;)"),
		Country:  findCountry(text),
	}
}

func findCountry(text string) string {
	lower := strings.ToLower(text)
	best, bestIdx := "", -1
	for _, c := range Countries {
		if idx := strings.Index(lower, strings.ToLower(c)); idx >= 0 && (bestIdx < 0 || idx < bestIdx) {
			best, bestIdx = c, idx
		}
	}
	return best
}
