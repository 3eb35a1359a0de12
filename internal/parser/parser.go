// Package parser extracts frontmatter, wikilinks and to-do state from Markdown notes.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Title       string
	IsTodo      bool
	// CompletedAt is the completion time of a to-do in Unix milliseconds, 0 when open.
	CompletedAt int64
}

// Parse extracts frontmatter, body, wikilinks and to-do state from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	isTodo, completedAt := todoState(fm)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Title:       deriveTitle(fm, body),
		IsTodo:      isTodo,
		CompletedAt: completedAt,
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Missing or invalid frontmatter leaves everything in the body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	afterDelim := rest[idx+1+len(delim):]
	return fm, strings.TrimLeft(string(afterDelim), "\n\r")
}

// extractLinks returns deduplicated wikilink targets; [[Target|Alias]] yields Target.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// todoState reads the "todo" and "completed" frontmatter fields. completed
// may be a boolean or a date; a true boolean counts as completed at the epoch
// plus one millisecond so that it still compares greater than zero.
func todoState(fm map[string]any) (bool, int64) {
	if fm == nil {
		return false, 0
	}
	isTodo, _ := fm["todo"].(bool)
	if !isTodo {
		return false, 0
	}
	switch v := fm["completed"].(type) {
	case bool:
		if v {
			return true, 1
		}
	case time.Time:
		return true, v.UnixMilli()
	case string:
		if ts, err := time.Parse(time.DateOnly, v); err == nil {
			return true, ts.UnixMilli()
		}
	}
	return true, 0
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
