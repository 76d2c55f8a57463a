package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty content",
			content: "   \n\t",
			want:    "",
		},
		{
			name:    "python shebang",
			content: "#!/usr/bin/env python3\nprint('hi')\n",
			want:    "python",
		},
		{
			name:    "bash shebang",
			content: "#!/bin/bash\nset -e\n",
			want:    "shell",
		},
		{
			name:    "json object",
			content: "{\n  \"name\": \"x\",\n  \"count\": 2\n}",
			want:    "json",
		},
		{
			name:    "sql select",
			content: "SELECT id, name FROM users WHERE active = 1;",
			want:    "sql",
		},
		{
			name:    "go source",
			content: "package main\n\nfunc main() {\n\tx := 1\n\tfmt.Println(x)\n}\n",
			want:    "go",
		},
		{
			name:    "rust source",
			content: "pub fn main() {\n    let mut x = 1;\n    match x { _ => {} }\n}\n",
			want:    "rust",
		},
		{
			name:    "plain prose stays unlabeled",
			content: "Meeting notes from Tuesday. Discuss roadmap.",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.content))
		})
	}
}

func TestDetectBoundsSample(t *testing.T) {
	// A giant buffer whose interesting prefix decides the answer; the tail
	// must not be scanned.
	content := "package main\nfunc main() { x := 1 }\n" + strings.Repeat("z", 2*sampleMaxBytes)
	assert.Equal(t, "go", Detect(content))
}

func TestUTF8PrefixDoesNotSplitRunes(t *testing.T) {
	s := strings.Repeat("é", 100)
	out := utf8Prefix(s, 101)
	assert.True(t, len(out) <= 101)
	assert.Equal(t, 0, len(out)%2, "é is two bytes; prefix must end on a rune boundary")
}
