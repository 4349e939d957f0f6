package profile

import "testing"

func TestExtract(t *testing.T) {
	text := `
Jane Doe
London, United Kingdom | +44 (0) 20 7946 0958 | jane.doe+cv@example.co.uk
https://www.linkedin.com/in/janedoe, github.com/janedoe.
Experience: worked with teams in Germany`

	p := Extract(text)
	if p.Name != "Jane Doe" {
		t.Fatalf("unexpected name %q", p.Name)
	}
	if p.Email != "jane.doe+cv@example.co.uk" {
		t.Fatalf("unexpected email %q", p.Email)
	}
	if p.Phone != "+44 (0) 20 7946 0958" {
		t.Fatalf("unexpected phone %q", p.Phone)
	}
	if p.LinkedIn != "https://www.linkedin.com/in/janedoe" {
		t.Fatalf("unexpected linkedin %q", p.LinkedIn)
	}
	if p.GitHub != "github.com/janedoe" {
		t.Fatalf("unexpected github %q", p.GitHub)
	}
	if p.Country != "United Kingdom" {
		t.Fatalf("unexpected country %q", p.Country)
	}
}

func TestExtractMissingFields(t *testing.T) {
	p := Extract("Only a name")
	if p.Name != "Only a name" || p.Email != "" || p.Phone != "" || p.LinkedIn != "" || p.GitHub != "" || p.Country != "" {
		t.Fatalf("unexpected profile %+v", p)
	}
}
