package jobdesc

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const (
	defaultFetchTimeout = 10 * time.Second
	userAgent           = "cv-tailor/1.0"
	maxBodyBytes        = 5 << 20
)

// ErrInvalidURL is returned for anything that is not an absolute http(s) URL.
var ErrInvalidURL = errors.New("job description url must be http or https")

// Fetcher downloads a job posting and keeps its paragraph text.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher with a 10s timeout when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{client: client}
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) (u *url.URL, err error) {
	u, err = url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		err = errors.Wrapf(ErrInvalidURL, "url %q", raw)
		return nil, err
	}
	return u, nil
}

// Fetch returns the text of every <p> element, trimmed and joined by blank lines.
// Pages without paragraphs fall back to list items.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (content string, err error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return content, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		err = errors.Wrapf(err, "failed to fetch job description from %s", u.Host)
		return content, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = errors.Errorf("job description fetch failed with status: %d", resp.StatusCode)
		return content, err
	}

	doc, err := goquery.NewDocumentFromReader(http.MaxBytesReader(nil, resp.Body, maxBodyBytes))
	if err != nil {
		err = errors.Wrap(err, "failed to parse job description html")
		return content, err
	}

	content = joinText(doc.Find("p"))
	if content == "" {
		content = joinText(doc.Find("li"))
	}
	if content == "" {
		err = errors.New("fetched page has no paragraph text")
		return content, err
	}
	return content, nil
}

func joinText(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// LinkedInSearchURL builds a LinkedIn job search link for the given keywords and location.
func LinkedInSearchURL(keywords, location string) string {
	q := url.Values{}
	q.Set("keywords", strings.TrimSpace(keywords))
	if loc := strings.TrimSpace(location); loc != "" {
		q.Set("location", loc)
	}
	return "https://www.linkedin.com/jobs/search/?" + q.Encode()
}
