// Package detect provides heuristic language detection for paste content.
//
// Detect is a pure function so callers can swap it for another detector (or
// a stub in tests). It samples a bounded prefix of the content and runs a
// short pipeline: shebang line, structural formats (JSON, SQL), then
// per-language keyword panels (markdown among them) scored by hit count.
package detect

import (
	"strings"
	"unicode/utf8"
)

const (
	sampleMaxBytes = 64 * 1024
	sampleMaxLines = 512

	// A panel needs at least this many distinct hits to claim the content.
	panelMinHits = 2
)

// Detect returns a lowercase language label for content, or "" when nothing
// matched with enough confidence.
func Detect(content string) string {
	sample := utf8Prefix(content, sampleMaxBytes)
	sample = linePrefix(sample, sampleMaxLines)
	trimmed := strings.TrimSpace(sample)
	if trimmed == "" {
		return ""
	}

	if lang := shebangInterpreter(trimmed); lang != "" {
		return lang
	}
	if looksLikeJSON(trimmed) {
		return "json"
	}
	if looksLikeSQL(trimmed) {
		return "sql"
	}

	best := ""
	bestHits := 0
	for _, panel := range keywordPanels {
		hits := 0
		for _, marker := range panel.markers {
			if strings.Contains(sample, marker) {
				hits++
			}
		}
		if hits >= panelMinHits && hits > bestHits {
			best = panel.language
			bestHits = hits
		}
	}
	return best
}

type panel struct {
	language string
	markers  []string
}

// Order matters only for tie-breaking via strict improvement; more specific
// panels come first.
var keywordPanels = []panel{
	{"rust", []string{"fn ", "impl ", "crate::", "let mut ", "pub fn", "struct ", "match ", "-> ", "::<"}},
	{"go", []string{"func ", "package ", ":= ", "chan ", "go func", "defer ", "interface{", "fmt."}},
	{"python", []string{"def ", "import ", "self.", "elif ", "lambda ", "__init__", "print("}},
	{"javascript", []string{"function ", "const ", "=> ", "console.log", "let ", "async ", "await "}},
	{"typescript", []string{": string", ": number", "interface ", "export type", "readonly ", "=> "}},
	{"c", []string{"#include", "int main(", "printf(", "void ", "malloc(", "sizeof("}},
	{"java", []string{"public class", "private ", "System.out", "static void", "extends ", "@Override"}},
	{"shell", []string{"#!/bin", "echo ", "fi\n", "esac", "$((", "if [ "}},
	{"yaml", []string{":\n  ", ":\n- ", "- name:", "---\n"}},
	{"html", []string{"<html", "<div", "</", "<body", "<!DOCTYPE"}},
	{"markdown", []string{"# ", "## ", "```", "](", "- [ ]"}},
}

func shebangInterpreter(sample string) string {
	if !strings.HasPrefix(sample, "#!") {
		return ""
	}
	line := sample
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return ""
	}
	interp := pathBasename(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = pathBasename(fields[1])
	}
	switch {
	case strings.HasPrefix(interp, "python"):
		return "python"
	case interp == "bash", interp == "sh", interp == "zsh", interp == "dash":
		return "shell"
	case interp == "node":
		return "javascript"
	case interp == "ruby":
		return "ruby"
	case interp == "perl":
		return "perl"
	}
	return ""
}

func pathBasename(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func looksLikeJSON(sample string) bool {
	if len(sample) < 2 {
		return false
	}
	first := sample[0]
	last := sample[len(sample)-1]
	if first == '{' && last == '}' {
		return strings.Contains(sample, "\":") || strings.Contains(sample, "\" :")
	}
	if first == '[' && last == ']' {
		return true
	}
	return false
}

func looksLikeSQL(sample string) bool {
	hits := 0
	for _, line := range strings.Split(sample, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(upper, "SELECT ") && strings.Contains(upper, " FROM "),
			strings.HasPrefix(upper, "INSERT INTO "),
			strings.HasPrefix(upper, "UPDATE ") && strings.Contains(upper, " SET "),
			strings.HasPrefix(upper, "DELETE FROM "),
			strings.HasPrefix(upper, "CREATE TABLE "),
			strings.HasPrefix(upper, "ALTER TABLE "):
			hits++
		}
		if hits >= 1 {
			return true
		}
	}
	return false
}

// utf8Prefix truncates to at most maxBytes without splitting a rune.
func utf8Prefix(content string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func linePrefix(content string, maxLines int) string {
	count := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			count++
			if count >= maxLines {
				return content[:i]
			}
		}
	}
	return content
}
