package store

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pszemraj/localpaste/pkg/types"
)

// Match weights for search scoring.
const (
	scoreNameMatch     = 10
	scoreTagMatch      = 5
	scoreLanguageMatch = 1
	scoreContentMatch  = 1
)

// applyUpdateRequest folds a partial update into the paste:
//
//   - content replaces content and recomputes the markdown flag
//   - an explicit language marks the choice manual unless the request also
//     carries its own manual flag
//   - when no language was given, the current choice is automatic, and the
//     content changed (or the request reset the manual flag), detection
//     reruns
//   - the empty-string folder id normalizes to "unfiled"
func applyUpdateRequest(p *types.Paste, req *types.UpdatePasteRequest, detector func(string) string, now time.Time) {
	contentChanged := false
	if req.Content != nil {
		p.Content = *req.Content
		p.IsMarkdown = types.IsMarkdownContent(p.Content)
		contentChanged = true
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Tags != nil {
		p.Tags = append([]string(nil), req.Tags...)
	}

	manualReset := false
	if req.Language != nil {
		p.Language = strings.TrimSpace(*req.Language)
		if req.LanguageIsManual != nil {
			p.LanguageIsManual = *req.LanguageIsManual
		} else {
			p.LanguageIsManual = true
		}
	} else if req.LanguageIsManual != nil {
		p.LanguageIsManual = *req.LanguageIsManual
		manualReset = !*req.LanguageIsManual
	}

	if req.Language == nil && !p.LanguageIsManual && (contentChanged || manualReset) {
		if detector != nil {
			p.Language = detector(p.Content)
		}
	}

	if folder, set := req.NormalizedFolderID(); set {
		p.FolderID = folder
	}

	p.UpdatedAt = now
}

// ranked pairs an item with its search ordering key.
type ranked[T any] struct {
	score     int
	updatedAt time.Time
	item      T
}

func rankedBetter[T any](a, b ranked[T]) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.updatedAt.After(b.updatedAt)
}

// pushRankedTopK keeps the best `limit` candidates: below capacity it
// appends; at capacity it replaces the worst entry only when the candidate
// is strictly better by (score desc, updated_at desc).
func pushRankedTopK[T any](results []ranked[T], candidate ranked[T], limit int) []ranked[T] {
	if limit <= 0 {
		return results
	}
	if len(results) < limit {
		return append(results, candidate)
	}
	worst := 0
	for i := 1; i < len(results); i++ {
		if rankedBetter(results[worst], results[i]) {
			worst = i
		}
	}
	if rankedBetter(candidate, results[worst]) {
		results[worst] = candidate
	}
	return results
}

// finalizeRanked sorts descending by (score, updated_at) and unwraps.
func finalizeRanked[T any](results []ranked[T]) []T {
	sort.SliceStable(results, func(i, j int) bool {
		return rankedBetter(results[i], results[j])
	})
	out := make([]T, 0, len(results))
	for _, r := range results {
		out = append(out, r.item)
	}
	return out
}

// containsFold reports a case-insensitive substring match. queryLower must
// already be lowercase. ASCII-only haystacks take a byte-wise fast path;
// anything else falls back to full Unicode lowercasing.
func containsFold(haystack, queryLower string) bool {
	if queryLower == "" {
		return true
	}
	if isASCII(haystack) && isASCII(queryLower) {
		return asciiContainsLower(haystack, queryLower)
	}
	return strings.Contains(strings.ToLower(haystack), queryLower)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= unicode.MaxASCII {
			return false
		}
	}
	return true
}

func asciiContainsLower(haystack, queryLower string) bool {
	n := len(queryLower)
	if n > len(haystack) {
		return false
	}
outer:
	for i := 0; i+n <= len(haystack); i++ {
		for j := 0; j < n; j++ {
			c := haystack[i+j]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != queryLower[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// scorePaste ranks a canonical paste against a lowercase query.
func scorePaste(p *types.Paste, queryLower string) int {
	score := 0
	if containsFold(p.Name, queryLower) {
		score += scoreNameMatch
	}
	for _, tag := range p.Tags {
		if containsFold(tag, queryLower) {
			score += scoreTagMatch
			break
		}
	}
	if containsFold(p.Content, queryLower) {
		score += scoreContentMatch
	}
	return score
}

// scoreMeta ranks a metadata row; content is not available here, so only
// name, tags and language participate.
func scoreMeta(m *types.PasteMeta, queryLower string) int {
	score := 0
	if containsFold(m.Name, queryLower) {
		score += scoreNameMatch
	}
	for _, tag := range m.Tags {
		if containsFold(tag, queryLower) {
			score += scoreTagMatch
			break
		}
	}
	if m.Language != "" && containsFold(m.Language, queryLower) {
		score += scoreLanguageMatch
	}
	return score
}

// languageMatches applies an optional case-insensitive language filter.
func languageMatches(language string, filter *string) bool {
	if filter == nil || strings.TrimSpace(*filter) == "" {
		return true
	}
	return strings.EqualFold(language, strings.TrimSpace(*filter))
}

// folderMatches applies an optional folder filter; nil means no filter and
// the empty string selects unfiled pastes.
func folderMatches(folderID string, filter *string) bool {
	if filter == nil {
		return true
	}
	return folderID == *filter
}
