package tailor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var (
	digitsRe     = regexp.MustCompile(`\d+`)
	codeFenceRe  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	knownHeaders = []string{HeaderScore, HeaderKeywords, HeaderTailoredCV, HeaderCoverLetter}
)

// ParseHeaders extracts fields by locating the literal headers. Missing headers
// leave their field empty and a score outside 0-100 is dropped; this never fails.
func ParseHeaders(raw string) Result {
	res := Result{MissingKeywords: []string{}}

	if body, ok := section(raw, HeaderScore); ok {
		if n, err := strconv.Atoi(digitsRe.FindString(body)); err == nil && n >= 0 && n <= 100 {
			res.MatchingScore = &n
		}
	}
	if body, ok := section(raw, HeaderKeywords); ok {
		res.MissingKeywords = bulletLines(body)
	}
	if body, ok := section(raw, HeaderTailoredCV); ok {
		res.TailoredCV = strings.TrimSpace(body)
	}
	if start := strings.Index(raw, HeaderCoverLetter); start >= 0 {
		res.CoverLetter = strings.TrimSpace(raw[start+len(HeaderCoverLetter):])
	}
	return res
}

// section returns the text after the first occurrence of header up to the
// nearest later occurrence of any other known header.
func section(raw, header string) (string, bool) {
	start := strings.Index(raw, header)
	if start < 0 {
		return "", false
	}
	bodyStart := start + len(header)
	end := len(raw)
	for _, other := range knownHeaders {
		if other == header {
			continue
		}
		if idx := strings.Index(raw[bodyStart:], other); idx >= 0 && bodyStart+idx < end {
			end = bodyStart + idx
		}
	}
	return raw[bodyStart:end], true
}

// bulletLines collects the consecutive bullet lines of a section body.
func bulletLines(body string) []string {
	out := []string{}
	started := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		item, ok := stripBullet(trimmed)
		if !ok {
			if started && trimmed != "" {
				break
			}
			continue
		}
		started = true
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func stripBullet(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	return "", false
}

type structuredReply struct {
	MatchingScore   *int     `mapstructure:"matchingScore"`
	MissingKeywords []string `mapstructure:"missingKeywords"`
	TailoredCV      string   `mapstructure:"tailoredCv"`
	CoverLetter     string   `mapstructure:"coverLetter"`
}

var requiredKeys = []string{"matchingScore", "missingKeywords", "tailoredCv", "coverLetter"}

// ParseStructured decodes a JSON reply strictly: unknown keys, missing keys,
// wrong types, trailing data and out-of-range scores are all rejected.
func ParseStructured(raw string) (Result, error) {
	payload := StripCodeFence(raw)
	if payload == "" {
		return Result{}, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Result{}, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return Result{}, fmt.Errorf("%w: missing key %q", ErrMalformedResponse, key)
		}
	}

	var reply structuredReply
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		DecodeHook:  rejectNumberAsString,
		Result:      &reply,
	})
	if err != nil {
		return Result{}, err
	}
	if err := decoder.Decode(fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if reply.MatchingScore != nil && (*reply.MatchingScore < 0 || *reply.MatchingScore > 100) {
		return Result{}, fmt.Errorf("%w: matchingScore %d out of range", ErrMalformedResponse, *reply.MatchingScore)
	}
	if strings.TrimSpace(reply.TailoredCV) == "" {
		return Result{}, fmt.Errorf("%w: tailoredCv is empty", ErrMalformedResponse)
	}

	keywords := make([]string, 0, len(reply.MissingKeywords))
	for _, kw := range reply.MissingKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return Result{
		MatchingScore:   reply.MatchingScore,
		MissingKeywords: keywords,
		TailoredCV:      strings.TrimSpace(reply.TailoredCV),
		CoverLetter:     strings.TrimSpace(reply.CoverLetter),
	}, nil
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

// rejectNumberAsString stops json.Number (a string kind) from filling string fields.
func rejectNumberAsString(from, to reflect.Type, data any) (any, error) {
	if from == jsonNumberType && to.Kind() == reflect.String {
		return nil, fmt.Errorf("expected string, got number %v", data)
	}
	return data, nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
