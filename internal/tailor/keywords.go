package tailor

import (
	"sort"
	"strings"
)

// MergeKeywords unions keywords into the CV's Skills section and rewrites it as
// one sorted, comma-joined line. Without a Skills section a new one is appended.
// Entries keep their case and inner spacing; only surrounding whitespace is trimmed,
// so merging the same keywords again is a no-op.
func MergeKeywords(cv string, keywords []string) string {
	lines := strings.Split(cv, "\n")
	idx, header, inline := findSkillsHeader(lines)
	if idx < 0 {
		added := uniqueSorted(splitEntries(keywords...))
		if len(added) == 0 {
			return cv
		}
		return cv + "\n\nSkills:\n" + strings.Join(added, ", ") + "\n"
	}

	end := idx + 1
	for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
		end++
	}

	existing := append([]string{inline}, lines[idx+1:end]...)
	merged := uniqueSorted(append(splitEntries(existing...), splitEntries(keywords...)...))
	if len(merged) == 0 {
		return cv
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:idx]...)
	out = append(out, header, strings.Join(merged, ", "))
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

// findSkillsHeader returns the index of the first "Skills" header line, the
// header text to keep and any entries written inline after the colon.
func findSkillsHeader(lines []string) (int, string, string) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < len("skills") || !strings.EqualFold(trimmed[:len("skills")], "skills") {
			continue
		}
		rest := strings.TrimSpace(trimmed[len("skills"):])
		if rest == "" {
			return i, strings.TrimRight(line, " \t\r"), ""
		}
		if strings.HasPrefix(rest, ":") {
			colon := strings.Index(line, ":")
			return i, line[:colon+1], line[colon+1:]
		}
	}
	return -1, "", ""
}

func splitEntries(parts ...string) []string {
	var out []string
	for _, part := range parts {
		for _, entry := range strings.FieldsFunc(part, func(r rune) bool { return r == ',' || r == '\n' }) {
			if entry = strings.TrimSpace(entry); entry != "" {
				out = append(out, entry)
			}
		}
	}
	return out
}

func uniqueSorted(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
