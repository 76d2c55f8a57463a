package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// key10 builds a geometry wrapping at 10 columns (width 100px, char 10px).
func key10(buf *Buffer) GeometryKey {
	return NewGeometryKey(100, 16, 10, buf.Revision(), buf.LineCount())
}

func TestWrapColsFloorsAndClamps(t *testing.T) {
	k := NewGeometryKey(100, 16, 10, 0, 1)
	assert.Equal(t, 10, k.WrapCols())

	k = NewGeometryKey(5, 16, 10, 0, 1)
	assert.Equal(t, 1, k.WrapCols(), "wrap cols never drop below one")

	k = NewGeometryKey(99, 16, 10, 0, 1)
	assert.Equal(t, 9, k.WrapCols())
}

func TestRebuildCountsVisualRows(t *testing.T) {
	buf := NewBuffer("short\n" + strings.Repeat("a", 25) + "\n")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	assert.Equal(t, 1, w.VisualRowsOfLine(0))
	assert.Equal(t, 3, w.VisualRowsOfLine(1))
	assert.Equal(t, 1, w.VisualRowsOfLine(2))
	assert.Equal(t, 5, w.TotalRows())
}

func TestLineForRowBinarySearch(t *testing.T) {
	buf := NewBuffer("short\n" + strings.Repeat("a", 25) + "\nlast")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	line, rowIn := w.LineForRow(0)
	assert.Equal(t, 0, line)
	assert.Equal(t, 0, rowIn)

	line, rowIn = w.LineForRow(2)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, rowIn)

	line, rowIn = w.LineForRow(4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 0, rowIn)
}

// E3: concatenating every row's char range reproduces the line range with
// contiguous boundaries.
func TestRowCharRangeCoverage(t *testing.T) {
	buf := NewBuffer(strings.Repeat("ab", 17) + "\nnext")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	rows := w.VisualRowsOfLine(0)
	require.Greater(t, rows, 1)

	lineStart := buf.LineColToChar(0, 0)
	lineEnd := buf.LineColToChar(0, buf.LineLenChars(0))

	prevEnd := lineStart
	for r := 0; r < rows; r++ {
		start, end := w.RowCharRange(buf, r)
		assert.Equal(t, prevEnd, start, "row %d must start where the previous ended", r)
		assert.Greater(t, end, start)
		prevEnd = end
	}
	assert.Equal(t, lineEnd, prevEnd)
}

func TestNeedsRebuildOnGeometryOrRevisionChange(t *testing.T) {
	buf := NewBuffer("hello")
	var w WrapLayout
	key := key10(buf)
	w.Rebuild(buf, key)
	assert.False(t, w.NeedsRebuild(key))

	buf.ReplaceCharRange(0, 0, "x")
	assert.True(t, w.NeedsRebuild(key10(buf)))

	wider := NewGeometryKey(200, 16, 10, buf.Revision(), buf.LineCount())
	assert.True(t, w.NeedsRebuild(wider))
}

func TestApplyDeltaSplicesAffectedLines(t *testing.T) {
	buf := NewBuffer("aaa\nbbb\nccc")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))
	before := w.TotalRows()

	delta := buf.ReplaceCharRange(4, 7, strings.Repeat("b", 25))
	require.NotNil(t, delta)
	ok := w.ApplyDelta(buf, delta, key10(buf))
	require.True(t, ok)

	assert.Equal(t, before+2, w.TotalRows())

	// The patched cache must equal a fresh rebuild.
	var fresh WrapLayout
	fresh.Rebuild(buf, key10(buf))
	assert.Equal(t, fresh.TotalRows(), w.TotalRows())
	for i := 0; i < buf.LineCount(); i++ {
		assert.Equal(t, fresh.VisualRowsOfLine(i), w.VisualRowsOfLine(i), "line %d", i)
	}
}

func TestApplyDeltaAcrossLineCountChange(t *testing.T) {
	buf := NewBuffer("aaa\nbbb")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	delta := buf.ReplaceCharRange(1, 1, "x\ny")
	require.NotNil(t, delta)
	require.True(t, w.ApplyDelta(buf, delta, key10(buf)))

	var fresh WrapLayout
	fresh.Rebuild(buf, key10(buf))
	assert.Equal(t, fresh.TotalRows(), w.TotalRows())
}

func TestApplyDeltaRejectsGeometryChange(t *testing.T) {
	buf := NewBuffer("aaa")
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	delta := buf.ReplaceCharRange(0, 0, "x")
	narrow := NewGeometryKey(50, 16, 10, buf.Revision(), buf.LineCount())
	assert.False(t, w.ApplyDelta(buf, delta, narrow), "geometry mismatch must force a rebuild")
}

func TestRowForCharAffinityAtWrapBoundary(t *testing.T) {
	buf := NewBuffer(strings.Repeat("a", 20))
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	// Char 10 is both end of row 0 and start of row 1.
	row, col := w.RowForChar(buf, 10, AffinityUpstream)
	assert.Equal(t, 0, row)
	assert.Equal(t, 10, col)

	row, col = w.RowForChar(buf, 10, AffinityDownstream)
	assert.Equal(t, 1, row)
	assert.Equal(t, 0, col)
}

func TestDisplayColumnToCharClampsToRowWidth(t *testing.T) {
	buf := NewBuffer("abcde\n" + strings.Repeat("x", 15))
	var w WrapLayout
	w.Rebuild(buf, key10(buf))

	// Row 0 is 5 wide; asking for column 9 clamps to the row end.
	pos := w.DisplayColumnToChar(buf, 0, 9)
	assert.Equal(t, 5, pos)

	pos = w.DisplayColumnToChar(buf, 1, 3)
	assert.Equal(t, buf.LineColToChar(1, 3), pos)
}

func TestZeroWidthRunesAnchorToColumnZero(t *testing.T) {
	// A combining mark leading the line must not consume a column.
	line := []rune("́abc")
	assert.Equal(t, 3, displayWidth(line))

	bounds := rowBoundaries([]rune(strings.Repeat("́", 3)+strings.Repeat("a", 12)), 10)
	assert.Equal(t, []int{0, 13}, bounds, "zero-width leaders stay on the first row")
}

func TestWideRunesOccupyTwoColumns(t *testing.T) {
	line := []rune("日本語のテキスト") // 8 wide runes = 16 columns
	l := measureLine(line, 10)
	assert.Equal(t, 16, l.displayCols)
	assert.Equal(t, 2, l.visualRows)
}
