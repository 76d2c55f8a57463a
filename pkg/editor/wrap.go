package editor

import (
	"math"
	"unicode"
)

// GeometryKey pins a wrap layout to the exact geometry and buffer state it
// was measured under. Pixel metrics are stored as float32 bit patterns so
// the key stays comparable.
type GeometryKey struct {
	WrapWidthPx    int
	LineHeightBits uint32
	CharWidthBits  uint32
	Revision       uint64
	LineCount      int
}

// NewGeometryKey builds a key from pixel metrics and buffer state.
func NewGeometryKey(wrapWidthPx int, lineHeightPx, charWidthPx float32, revision uint64, lineCount int) GeometryKey {
	return GeometryKey{
		WrapWidthPx:    wrapWidthPx,
		LineHeightBits: math.Float32bits(lineHeightPx),
		CharWidthBits:  math.Float32bits(charWidthPx),
		Revision:       revision,
		LineCount:      lineCount,
	}
}

// WrapCols derives the column capacity of a visual row from the geometry.
func (k GeometryKey) WrapCols() int {
	charWidth := math.Float32frombits(k.CharWidthBits)
	if charWidth <= 0 {
		return 1
	}
	cols := int(float32(k.WrapWidthPx) / charWidth)
	if cols < 1 {
		cols = 1
	}
	return cols
}

// sameGeometry ignores the buffer-state part of the key.
func (k GeometryKey) sameGeometry(other GeometryKey) bool {
	return k.WrapWidthPx == other.WrapWidthPx &&
		k.LineHeightBits == other.LineHeightBits &&
		k.CharWidthBits == other.CharWidthBits
}

// lineLayout is one physical line's measurement.
type lineLayout struct {
	chars       int
	displayCols int
	visualRows  int
}

// WrapLayout caches per-line wrap measurements and a prefix-sum array that
// maps visual row indices to (physical line, row-in-line) in O(log n).
type WrapLayout struct {
	key       GeometryKey
	wrapCols  int
	lines     []lineLayout
	rowPrefix []int // rowPrefix[i] = visual rows before line i; len(lines)+1
}

// NeedsRebuild reports whether the cache no longer matches the geometry or
// buffer state.
func (w *WrapLayout) NeedsRebuild(key GeometryKey) bool {
	return w.key != key
}

// Rebuild measures every line from scratch under the new geometry.
func (w *WrapLayout) Rebuild(buf *Buffer, key GeometryKey) {
	w.key = key
	w.wrapCols = key.WrapCols()
	w.lines = make([]lineLayout, buf.LineCount())
	for i := range w.lines {
		w.lines[i] = measureLine([]rune(buf.Line(i)), w.wrapCols)
	}
	w.rebuildPrefix(0)
}

func (w *WrapLayout) rebuildPrefix(fromLine int) {
	if w.rowPrefix == nil || len(w.rowPrefix) != len(w.lines)+1 {
		w.rowPrefix = make([]int, len(w.lines)+1)
		fromLine = 0
	}
	for i := fromLine; i < len(w.lines); i++ {
		w.rowPrefix[i+1] = w.rowPrefix[i] + w.lines[i].visualRows
	}
}

// ApplyDelta splices the measurements of the affected line span. Returns
// false when the cache disagrees with the delta's expectations (geometry
// changed, line counts off), in which case the caller rebuilds.
func (w *WrapLayout) ApplyDelta(buf *Buffer, delta *EditDelta, key GeometryKey) bool {
	if delta == nil || !w.key.sameGeometry(key) || w.wrapCols != key.WrapCols() {
		return false
	}
	if delta.StartLine < 0 || delta.OldEndLine >= len(w.lines) || delta.StartLine > delta.OldEndLine {
		return false
	}
	if delta.NewEndLine >= buf.LineCount() {
		return false
	}

	oldSpan := delta.OldEndLine - delta.StartLine + 1
	newSpan := delta.NewEndLine - delta.StartLine + 1
	if len(w.lines)-oldSpan+newSpan != buf.LineCount() {
		return false
	}

	fresh := make([]lineLayout, newSpan)
	for i := 0; i < newSpan; i++ {
		fresh[i] = measureLine([]rune(buf.Line(delta.StartLine+i)), w.wrapCols)
	}

	spliced := make([]lineLayout, 0, len(w.lines)-oldSpan+newSpan)
	spliced = append(spliced, w.lines[:delta.StartLine]...)
	spliced = append(spliced, fresh...)
	spliced = append(spliced, w.lines[delta.OldEndLine+1:]...)
	w.lines = spliced

	w.rowPrefix = nil
	w.rebuildPrefix(0)
	w.key = key
	return true
}

// TotalRows returns the visual row count of the whole buffer.
func (w *WrapLayout) TotalRows() int {
	if len(w.rowPrefix) == 0 {
		return 0
	}
	return w.rowPrefix[len(w.rowPrefix)-1]
}

// LineForRow maps a visual row index to (physical line, row-in-line) by
// binary search over the prefix sums.
func (w *WrapLayout) LineForRow(row int) (int, int) {
	if row < 0 || len(w.lines) == 0 {
		return 0, 0
	}
	if row >= w.TotalRows() {
		last := len(w.lines) - 1
		return last, w.lines[last].visualRows - 1
	}
	lo, hi := 0, len(w.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if w.rowPrefix[mid] <= row {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, row - w.rowPrefix[lo]
}

// FirstRowOfLine returns the visual row index of a line's first row.
func (w *WrapLayout) FirstRowOfLine(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(w.lines) {
		return w.TotalRows()
	}
	return w.rowPrefix[line]
}

// VisualRowsOfLine returns how many rows a line wraps into.
func (w *WrapLayout) VisualRowsOfLine(line int) int {
	if line < 0 || line >= len(w.lines) {
		return 1
	}
	return w.lines[line].visualRows
}

// rowBoundaries walks a line and returns the char offsets at which each
// visual row starts, always beginning with 0.
func rowBoundaries(line []rune, wrapCols int) []int {
	bounds := []int{0}
	col := 0
	for i, r := range line {
		w := runeDisplayWidth(r)
		if col+w > wrapCols && col > 0 {
			bounds = append(bounds, i)
			col = 0
		}
		col += w
	}
	return bounds
}

// RowCharRange returns the global char range a visual row covers.
// Consecutive rows' ranges are contiguous and collectively equal the line
// range; the final row of a line extends over the line end position.
func (w *WrapLayout) RowCharRange(buf *Buffer, row int) (int, int) {
	line, rowInLine := w.LineForRow(row)
	runes := []rune(buf.Line(line))
	bounds := rowBoundaries(runes, w.wrapCols)
	if rowInLine >= len(bounds) {
		rowInLine = len(bounds) - 1
	}
	start := bounds[rowInLine]
	end := len(runes)
	if rowInLine+1 < len(bounds) {
		end = bounds[rowInLine+1]
	}
	base := buf.LineColToChar(line, 0)
	return base + start, base + end
}

// RowForChar maps a char index to its visual row, honoring wrap-boundary
// affinity: a cursor exactly on a soft-wrap boundary belongs to the end of
// the upstream row when affinity is Upstream, else to the start of the
// downstream row.
func (w *WrapLayout) RowForChar(buf *Buffer, idx int, affinity Affinity) (row int, colInRow int) {
	line, col := buf.CharToLineCol(idx)
	runes := []rune(buf.Line(line))
	bounds := rowBoundaries(runes, w.wrapCols)
	rowInLine := 0
	for i := len(bounds) - 1; i >= 0; i-- {
		if col > bounds[i] || (col == bounds[i] && (i == 0 || affinity == AffinityDownstream)) {
			rowInLine = i
			break
		}
	}
	rowStart := bounds[rowInLine]
	displayCol := displayWidth(runes[rowStart:min(col, len(runes))])
	return w.FirstRowOfLine(line) + rowInLine, displayCol
}

// DisplayColumnToChar maps a display column within a visual row back to a
// char index, clamping to the row's width.
func (w *WrapLayout) DisplayColumnToChar(buf *Buffer, row, displayCol int) int {
	start, end := w.RowCharRange(buf, row)
	line, startCol := buf.CharToLineCol(start)
	runes := []rune(buf.Line(line))
	col := 0
	idx := startCol
	for idx < startCol+(end-start) && idx < len(runes) {
		wdt := runeDisplayWidth(runes[idx])
		if col+wdt > displayCol {
			break
		}
		col += wdt
		idx++
	}
	return buf.LineColToChar(line, idx)
}

func measureLine(line []rune, wrapCols int) lineLayout {
	bounds := rowBoundaries(line, wrapCols)
	return lineLayout{
		chars:       len(line),
		displayCols: displayWidth(line),
		visualRows:  len(bounds),
	}
}

func displayWidth(runes []rune) int {
	total := 0
	for _, r := range runes {
		total += runeDisplayWidth(r)
	}
	return total
}

// runeDisplayWidth approximates terminal-style display widths: four columns
// for a tab, one for other ASCII and most scripts, two for East Asian wide
// forms, zero for combining marks and format controls.
func runeDisplayWidth(r rune) int {
	if r < unicode.MaxASCII {
		if r == '\t' {
			return 4
		}
		return 1
	}
	if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) || unicode.Is(unicode.Cf, r) {
		return 0
	}
	if isWideRune(r) {
		return 2
	}
	return 1
}

func isWideRune(r rune) bool {
	switch {
	case r >= 0x1100 && r <= 0x115F, // Hangul Jamo
		r >= 0x2E80 && r <= 0x9FFF, // CJK radicals through unified ideographs
		r >= 0xAC00 && r <= 0xD7A3, // Hangul syllables
		r >= 0xF900 && r <= 0xFAFF, // CJK compatibility ideographs
		r >= 0xFF00 && r <= 0xFF60, // fullwidth forms
		r >= 0x20000 && r <= 0x2FFFD,
		r >= 0x30000 && r <= 0x3FFFD:
		return true
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
