package editor

import (
	"strings"
	"unicode/utf8"
)

// EditDelta describes the minimal physical-line span affected by a buffer
// mutation so dependent caches can patch incrementally instead of
// rebuilding.
type EditDelta struct {
	StartLine  int
	OldEndLine int
	NewEndLine int
	CharDelta  int
}

// Buffer stores text as a sequence of line chunks with a cached prefix-sum
// array over line lengths. All positions are rune ("char") indices;
// newlines count as one char each. The revision counter bumps on every
// mutation and keys every derived cache.
type Buffer struct {
	lines      [][]rune
	lineStarts []int // lineStarts[i] = char index of line i's first char
	totalChars int
	revision   uint64
}

// NewBuffer builds a buffer from text.
func NewBuffer(text string) *Buffer {
	b := &Buffer{}
	for _, line := range strings.Split(text, "\n") {
		b.lines = append(b.lines, []rune(line))
	}
	b.reindex()
	return b
}

// reindex rebuilds the prefix sums after a mutation.
func (b *Buffer) reindex() {
	b.lineStarts = make([]int, len(b.lines))
	total := 0
	for i, line := range b.lines {
		b.lineStarts[i] = total
		total += len(line)
		if i < len(b.lines)-1 {
			total++ // the newline
		}
	}
	b.totalChars = total
}

// Revision is monotonic and bumps on each mutation.
func (b *Buffer) Revision() uint64 { return b.revision }

// LenChars returns the total char count including newlines.
func (b *Buffer) LenChars() int { return b.totalChars }

// LineCount returns the number of physical lines; an empty buffer has one.
func (b *Buffer) LineCount() int { return len(b.lines) }

// LineLenChars returns the char count of a line excluding its newline.
func (b *Buffer) LineLenChars(line int) int {
	if line < 0 || line >= len(b.lines) {
		return 0
	}
	return len(b.lines[line])
}

// Line returns a line's text without its newline.
func (b *Buffer) Line(line int) string {
	if line < 0 || line >= len(b.lines) {
		return ""
	}
	return string(b.lines[line])
}

// LineColToChar converts a clamped (line, col) to a char index.
func (b *Buffer) LineColToChar(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(b.lines) {
		return b.totalChars
	}
	if col < 0 {
		col = 0
	}
	if max := len(b.lines[line]); col > max {
		col = max
	}
	return b.lineStarts[line] + col
}

// CharToLineCol converts a clamped char index to (line, col).
func (b *Buffer) CharToLineCol(idx int) (int, int) {
	if idx <= 0 {
		return 0, 0
	}
	if idx >= b.totalChars {
		last := len(b.lines) - 1
		return last, len(b.lines[last])
	}
	// Binary search for the last line starting at or before idx.
	lo, hi := 0, len(b.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.lineStarts[mid] <= idx {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	col := idx - b.lineStarts[lo]
	if col > len(b.lines[lo]) {
		// The index sits on this line's newline; treat as end of line.
		col = len(b.lines[lo])
	}
	return lo, col
}

// SliceChars returns the text in [start, end), clamped.
func (b *Buffer) SliceChars(start, end int) string {
	start, end = b.clampRange(start, end)
	if start >= end {
		return ""
	}
	startLine, startCol := b.CharToLineCol(start)
	endLine, endCol := b.CharToLineCol(end)

	if startLine == endLine {
		return string(b.lines[startLine][startCol:endCol])
	}
	var sb strings.Builder
	sb.WriteString(string(b.lines[startLine][startCol:]))
	for line := startLine + 1; line <= endLine; line++ {
		sb.WriteByte('\n')
		if line == endLine {
			sb.WriteString(string(b.lines[line][:endCol]))
		} else {
			sb.WriteString(string(b.lines[line]))
		}
	}
	// A slice ending exactly on a newline: endCol == 0 handled above by
	// writing the newline then an empty prefix.
	return sb.String()
}

// Text returns the whole buffer.
func (b *Buffer) Text() string {
	return b.SliceChars(0, b.totalChars)
}

func (b *Buffer) clampRange(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > b.totalChars {
		start = b.totalChars
	}
	if end > b.totalChars {
		end = b.totalChars
	}
	if end < start {
		end = start
	}
	return start, end
}

// ReplaceCharRange replaces [start, end) with replacement, returning the
// line-span delta for cache patching, or nil when the edit is a no-op.
func (b *Buffer) ReplaceCharRange(start, end int, replacement string) *EditDelta {
	start, end = b.clampRange(start, end)
	if start == end && replacement == "" {
		return nil
	}

	startLine, startCol := b.CharToLineCol(start)
	endLine, endCol := b.CharToLineCol(end)
	removedChars := end - start

	prefix := b.lines[startLine][:startCol]
	suffix := b.lines[endLine][endCol:]

	newSegs := strings.Split(replacement, "\n")
	newLines := make([][]rune, 0, len(newSegs))
	for i, seg := range newSegs {
		runes := []rune(seg)
		if i == 0 {
			runes = append(append([]rune{}, prefix...), runes...)
		}
		if i == len(newSegs)-1 {
			runes = append(runes, suffix...)
		}
		newLines = append(newLines, runes)
	}

	replaced := append([][]rune{}, b.lines[:startLine]...)
	replaced = append(replaced, newLines...)
	replaced = append(replaced, b.lines[endLine+1:]...)
	b.lines = replaced
	b.reindex()
	b.revision++

	insertedChars := utf8.RuneCountInString(replacement)

	return &EditDelta{
		StartLine:  startLine,
		OldEndLine: endLine,
		NewEndLine: startLine + len(newSegs) - 1,
		CharDelta:  insertedChars - removedChars,
	}
}
