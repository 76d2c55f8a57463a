package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferBasics(t *testing.T) {
	b := NewBuffer("ab\ncd\n\nxyz")
	assert.Equal(t, 10, b.LenChars())
	assert.Equal(t, 4, b.LineCount())
	assert.Equal(t, 2, b.LineLenChars(0))
	assert.Equal(t, 0, b.LineLenChars(2))
	assert.Equal(t, "cd", b.Line(1))
}

func TestLineColCharConversionsAreInverse(t *testing.T) {
	b := NewBuffer("ab\ncd\n\nxyz")
	for idx := 0; idx <= b.LenChars(); idx++ {
		line, col := b.CharToLineCol(idx)
		back := b.LineColToChar(line, col)
		// Indices on a newline map to end-of-line and stay there.
		assert.LessOrEqual(t, back, idx)
		assert.GreaterOrEqual(t, back, idx-1)
	}
	assert.Equal(t, 3, b.LineColToChar(1, 0))
	line, col := b.CharToLineCol(4)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)
}

func TestSliceChars(t *testing.T) {
	b := NewBuffer("ab\ncd")
	assert.Equal(t, "b\nc", b.SliceChars(1, 4))
	assert.Equal(t, "ab\ncd", b.Text())
	assert.Equal(t, "", b.SliceChars(3, 3))
	assert.Equal(t, "ab\ncd", b.SliceChars(-5, 99))
}

func TestReplaceCharRangeSingleLine(t *testing.T) {
	b := NewBuffer("hello world")
	delta := b.ReplaceCharRange(6, 11, "there")
	require.NotNil(t, delta)
	assert.Equal(t, "hello there", b.Text())
	assert.Equal(t, &EditDelta{StartLine: 0, OldEndLine: 0, NewEndLine: 0, CharDelta: 0}, delta)
}

func TestReplaceCharRangeSplitsAndJoinsLines(t *testing.T) {
	b := NewBuffer("one two")
	delta := b.ReplaceCharRange(3, 4, "\n")
	require.NotNil(t, delta)
	assert.Equal(t, "one\ntwo", b.Text())
	assert.Equal(t, 2, b.LineCount())
	assert.Equal(t, 0, delta.StartLine)
	assert.Equal(t, 1, delta.NewEndLine)

	delta = b.ReplaceCharRange(3, 4, " ")
	require.NotNil(t, delta)
	assert.Equal(t, "one two", b.Text())
	assert.Equal(t, 1, b.LineCount())
	assert.Equal(t, 1, delta.OldEndLine)
	assert.Equal(t, 0, delta.NewEndLine)
}

func TestReplaceCharRangeNoOpReturnsNil(t *testing.T) {
	b := NewBuffer("abc")
	rev := b.Revision()
	assert.Nil(t, b.ReplaceCharRange(1, 1, ""))
	assert.Equal(t, rev, b.Revision())
}

func TestRevisionBumpsOnEveryMutation(t *testing.T) {
	b := NewBuffer("abc")
	r0 := b.Revision()
	b.ReplaceCharRange(0, 0, "x")
	r1 := b.Revision()
	b.ReplaceCharRange(0, 1, "")
	r2 := b.Revision()
	assert.Greater(t, r1, r0)
	assert.Greater(t, r2, r1)
}

func TestReplaceCharRangeUnicode(t *testing.T) {
	b := NewBuffer("héllo")
	delta := b.ReplaceCharRange(1, 2, "e")
	require.NotNil(t, delta)
	assert.Equal(t, "hello", b.Text())
	assert.Equal(t, 0, delta.CharDelta)
}
