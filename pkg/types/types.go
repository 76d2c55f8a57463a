package types

import (
	"strings"
	"time"
)

// Paste is a user-created text snippet. The pastes table is the single
// source of truth; PasteMeta and the recency index are derived from it.
type Paste struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Content          string    `json:"content"`
	Language         string    `json:"language,omitempty"`
	LanguageIsManual bool      `json:"language_is_manual"`
	FolderID         string    `json:"folder_id,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	IsMarkdown       bool      `json:"is_markdown"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Meta projects the paste without its content.
func (p *Paste) Meta() *PasteMeta {
	return &PasteMeta{
		ID:               p.ID,
		Name:             p.Name,
		Language:         p.Language,
		LanguageIsManual: p.LanguageIsManual,
		FolderID:         p.FolderID,
		Tags:             append([]string(nil), p.Tags...),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// PasteMeta is the derived projection of a Paste stored in pastes_meta.
type PasteMeta struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Language         string    `json:"language,omitempty"`
	LanguageIsManual bool      `json:"language_is_manual"`
	FolderID         string    `json:"folder_id,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Folder is a named container for pastes. PasteCount is a materialized
// counter maintained by the transaction coordinator, not a live aggregate.
type Folder struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParentID   string    `json:"parent_id,omitempty"`
	PasteCount int       `json:"paste_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// UpdatePasteRequest is a partial update applied to a paste. Nil fields are
// left untouched.
type UpdatePasteRequest struct {
	Name             *string  `json:"name,omitempty"`
	Content          *string  `json:"content,omitempty"`
	Language         *string  `json:"language,omitempty"`
	LanguageIsManual *bool    `json:"language_is_manual,omitempty"`
	FolderID         *string  `json:"folder_id,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// NormalizedFolderID returns the requested folder id with the empty-string
// sentinel mapped to "unfiled", and whether the request set the field at all.
func (r *UpdatePasteRequest) NormalizedFolderID() (string, bool) {
	if r.FolderID == nil {
		return "", false
	}
	return strings.TrimSpace(*r.FolderID), true
}

// IndexState is the persisted derived-index trust marker: schema version,
// number of in-flight index mutations, and a sticky fault flag.
type IndexState struct {
	SchemaVersion   uint32
	InProgressCount uint64
	Faulted         bool
}

// IsMarkdownContent reports whether content should render as markdown.
// Cheap structural sniff over the leading lines; recomputed whenever
// content changes.
func IsMarkdownContent(content string) bool {
	lines := 0
	hits := 0
	for _, line := range strings.Split(content, "\n") {
		lines++
		if lines > 64 {
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# "),
			strings.HasPrefix(trimmed, "## "),
			strings.HasPrefix(trimmed, "### "),
			strings.HasPrefix(trimmed, "- "),
			strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "```"),
			strings.HasPrefix(trimmed, "> "):
			hits++
		}
	}
	return hits >= 2 || (lines <= 4 && hits >= 1)
}
