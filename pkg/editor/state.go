package editor

import (
	"unicode"
	"unicode/utf8"
)

// Affinity disambiguates a cursor sitting exactly on a soft-wrap boundary:
// the same char index is both the end of row N and the start of row N+1.
type Affinity int

const (
	AffinityDownstream Affinity = iota
	AffinityUpstream
)

// MaxRenderLineChars is the hard per-line display cap. Cursor positions are
// clamped into this domain for display safety, and undo anchors live in the
// same domain so undo cannot restore an off-screen cursor.
const MaxRenderLineChars = 100_000

// IMEState tracks an active input-method composition.
type IMEState struct {
	Enabled       bool
	PreeditActive bool
	PreeditStart  int
	PreeditEnd    int
	PreeditText   string
}

// Editor is the virtualized text editor core: a line-chunked buffer, the
// wrap layout cache, an undo/redo history and the cursor/selection state,
// driven synchronously by normalized commands.
type Editor struct {
	buf     *Buffer
	wrap    WrapLayout
	history *History

	cursor       int
	anchor       *int
	preferredCol *int
	affinity     Affinity
	ime          IMEState

	wrapWidthPx      int
	lineHeightPx     float32
	charWidthPx      float32
	viewportHeightPx float32

	clipboard string
}

// NewEditor builds an editor over text with the given geometry.
func NewEditor(text string, wrapWidthPx int, lineHeightPx, charWidthPx, viewportHeightPx float32) *Editor {
	e := &Editor{
		buf:              NewBuffer(text),
		history:          NewHistory(),
		wrapWidthPx:      wrapWidthPx,
		lineHeightPx:     lineHeightPx,
		charWidthPx:      charWidthPx,
		viewportHeightPx: viewportHeightPx,
	}
	e.wrap.Rebuild(e.buf, e.geometryKey())
	return e
}

func (e *Editor) geometryKey() GeometryKey {
	return NewGeometryKey(e.wrapWidthPx, e.lineHeightPx, e.charWidthPx, e.buf.Revision(), e.buf.LineCount())
}

// Buffer exposes the underlying buffer for rendering.
func (e *Editor) Buffer() *Buffer { return e.buf }

// Layout returns the wrap layout, rebuilding it if stale.
func (e *Editor) Layout() *WrapLayout {
	if key := e.geometryKey(); e.wrap.NeedsRebuild(key) {
		e.wrap.Rebuild(e.buf, key)
	}
	return &e.wrap
}

// SetGeometry updates the wrap geometry; the next Layout call rebuilds.
func (e *Editor) SetGeometry(wrapWidthPx int, lineHeightPx, charWidthPx, viewportHeightPx float32) {
	e.wrapWidthPx = wrapWidthPx
	e.lineHeightPx = lineHeightPx
	e.charWidthPx = charWidthPx
	e.viewportHeightPx = viewportHeightPx
}

// Cursor returns the current cursor char index.
func (e *Editor) Cursor() int { return e.cursor }

// Selection returns the active selection range, ordered, or ok=false.
func (e *Editor) Selection() (start, end int, ok bool) {
	if e.anchor == nil || *e.anchor == e.cursor {
		return 0, 0, false
	}
	if *e.anchor < e.cursor {
		return *e.anchor, e.cursor, true
	}
	return e.cursor, *e.anchor, true
}

// Clipboard returns the text captured by the last Copy or Cut.
func (e *Editor) Clipboard() string { return e.clipboard }

// IME returns the composition state.
func (e *Editor) IME() IMEState { return e.ime }

// clampToRenderCap forces a position into the render-bounded line domain.
func (e *Editor) clampToRenderCap(pos int) int {
	line, col := e.buf.CharToLineCol(pos)
	if col > MaxRenderLineChars {
		col = MaxRenderLineChars
	}
	return e.buf.LineColToChar(line, col)
}

// lineRenderEnd is the last reachable char of a line, honoring the cap.
func (e *Editor) lineRenderEnd(line int) int {
	col := e.buf.LineLenChars(line)
	if col > MaxRenderLineChars {
		col = MaxRenderLineChars
	}
	return e.buf.LineColToChar(line, col)
}

// setCursor moves the cursor, maintaining or collapsing the selection.
func (e *Editor) setCursor(pos int, selecting bool) {
	pos = e.clampToRenderCap(pos)
	if selecting {
		if e.anchor == nil {
			a := e.cursor
			e.anchor = &a
		}
	} else {
		e.anchor = nil
	}
	e.cursor = pos
}

// MoveCursorTo places the cursor from a pointer gesture, clamped to the
// render cap.
func (e *Editor) MoveCursorTo(pos int, selecting bool) {
	e.preferredCol = nil
	e.affinity = AffinityDownstream
	e.setCursor(pos, selecting)
}

// Apply executes one normalized command.
func (e *Editor) Apply(cmd Command) {
	// An active preedit consumes ordinary insertions.
	if e.ime.PreeditActive && cmd.IsInsertion() {
		return
	}

	switch cmd.Kind {
	case CmdMoveLeft:
		e.moveHorizontal(-1, cmd.Select, cmd.Word)
	case CmdMoveRight:
		e.moveHorizontal(1, cmd.Select, cmd.Word)
	case CmdMoveUp:
		e.moveVertical(-1, cmd.Select)
	case CmdMoveDown:
		e.moveVertical(1, cmd.Select)
	case CmdPageUp:
		e.movePage(-1, cmd.Select)
	case CmdPageDown:
		e.movePage(1, cmd.Select)
	case CmdMoveHome:
		e.moveRowEdge(false, cmd.Select)
	case CmdMoveEnd:
		e.moveRowEdge(true, cmd.Select)
	case CmdMoveLineHome:
		line, _ := e.buf.CharToLineCol(e.cursor)
		e.resetColumnIntent()
		e.setCursor(e.buf.LineColToChar(line, 0), cmd.Select)
	case CmdMoveLineEnd:
		line, _ := e.buf.CharToLineCol(e.cursor)
		e.resetColumnIntent()
		e.setCursor(e.lineRenderEnd(line), cmd.Select)
	case CmdMoveDocHome:
		e.resetColumnIntent()
		e.setCursor(0, cmd.Select)
	case CmdMoveDocEnd:
		e.resetColumnIntent()
		e.setCursor(e.buf.LenChars(), cmd.Select)
	case CmdBackspace:
		e.deleteBackward(cmd.Word)
	case CmdDeleteForward:
		e.deleteForward(cmd.Word)
	case CmdDeleteToLineStart:
		line, _ := e.buf.CharToLineCol(e.cursor)
		e.deleteRange(e.buf.LineColToChar(line, 0), e.cursor, IntentDeleteBackward)
	case CmdDeleteToLineEnd:
		line, _ := e.buf.CharToLineCol(e.cursor)
		e.deleteRange(e.cursor, e.buf.LineColToChar(line, e.buf.LineLenChars(line)), IntentDeleteForward)
	case CmdInsertText:
		e.insert(cmd.Text, IntentTyping)
	case CmdInsertNewline:
		e.insert("\n", IntentNewline)
	case CmdInsertTab:
		e.insert("\t", IntentTyping)
	case CmdSelectAll:
		zero := 0
		e.anchor = &zero
		e.cursor = e.clampToRenderCap(e.buf.LenChars())
	case CmdCopy:
		if start, end, ok := e.Selection(); ok {
			e.clipboard = e.buf.SliceChars(start, end)
		}
	case CmdCut:
		if start, end, ok := e.Selection(); ok {
			e.clipboard = e.buf.SliceChars(start, end)
			e.deleteRange(start, end, IntentCut)
		}
	case CmdPaste:
		if cmd.Text != "" {
			e.insert(cmd.Text, IntentPaste)
		}
	case CmdUndo:
		e.undo()
	case CmdRedo:
		e.redo()
	case CmdImeEnabled:
		e.ime.Enabled = true
	case CmdImePreedit:
		e.imePreedit(cmd.Text)
	case CmdImeCommit:
		e.imeCommit(cmd.Text)
	case CmdImeDisabled:
		e.imeClear()
		e.ime.Enabled = false
	}
}

func (e *Editor) resetColumnIntent() {
	e.preferredCol = nil
	e.affinity = AffinityDownstream
}

// --- movement ---

func (e *Editor) moveHorizontal(dir int, selecting, word bool) {
	e.resetColumnIntent()

	// Plain arrows collapse a selection to its edge.
	if start, end, ok := e.Selection(); ok && !selecting && !word {
		if dir < 0 {
			e.setCursor(start, false)
		} else {
			e.setCursor(end, false)
		}
		return
	}

	var target int
	if word {
		if dir < 0 {
			target = e.wordLeft(e.cursor)
		} else {
			target = e.wordRight(e.cursor)
		}
	} else {
		target = e.cursor + dir
		if target < 0 {
			target = 0
		}
		if target > e.buf.LenChars() {
			target = e.buf.LenChars()
		}
		// Stepping over a capped tail jumps to the next line edge.
		target = e.stepAcrossRenderCap(target, dir)
	}
	e.setCursor(target, selecting)
}

// stepAcrossRenderCap keeps single-char movement inside the render-bounded
// domain: moving right from the cap lands on the next line start.
func (e *Editor) stepAcrossRenderCap(target, dir int) int {
	line, col := e.buf.CharToLineCol(target)
	if col <= MaxRenderLineChars {
		return target
	}
	if dir > 0 {
		if line+1 < e.buf.LineCount() {
			return e.buf.LineColToChar(line+1, 0)
		}
		return e.buf.LineColToChar(line, MaxRenderLineChars)
	}
	return e.buf.LineColToChar(line, MaxRenderLineChars)
}

func isWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordLeft skips a whitespace run, then a same-class run, never crossing
// a render-capped line end.
func (e *Editor) wordLeft(pos int) int {
	if pos <= 0 {
		return 0
	}
	text := []rune(e.buf.SliceChars(0, pos))
	i := len(text)
	for i > 0 && unicode.IsSpace(text[i-1]) {
		i--
	}
	if i > 0 {
		class := isWordChar(text[i-1])
		for i > 0 && !unicode.IsSpace(text[i-1]) && isWordChar(text[i-1]) == class {
			i--
		}
	}
	return e.clampToRenderCap(i)
}

// wordRight mirrors wordLeft.
func (e *Editor) wordRight(pos int) int {
	total := e.buf.LenChars()
	if pos >= total {
		return total
	}
	line, _ := e.buf.CharToLineCol(pos)
	limit := e.lineRenderEnd(line)
	if pos >= limit && line+1 < e.buf.LineCount() {
		// Hop over the capped tail and the newline.
		return e.buf.LineColToChar(line+1, 0)
	}
	text := []rune(e.buf.SliceChars(pos, min(total, pos+4096)))
	i := 0
	for i < len(text) && unicode.IsSpace(text[i]) {
		i++
	}
	if i < len(text) {
		class := isWordChar(text[i])
		for i < len(text) && !unicode.IsSpace(text[i]) && isWordChar(text[i]) == class {
			i++
		}
	}
	target := pos + i
	if target > limit && limit >= pos {
		target = limit
	}
	return target
}

// moveRowEdge implements Home/End on the current visual row.
func (e *Editor) moveRowEdge(end bool, selecting bool) {
	layout := e.Layout()
	row, _ := layout.RowForChar(e.buf, e.cursor, e.affinity)
	start, rowEnd := layout.RowCharRange(e.buf, e.cursor2Row(row))
	e.resetColumnIntent()
	if end {
		// Sitting at a soft-wrap boundary means end-of-row, not start of
		// the next.
		e.affinity = AffinityUpstream
		e.setCursor(e.clampToRenderCap(rowEnd), selecting)
	} else {
		e.setCursor(start, selecting)
	}
}

// cursor2Row guards against a stale row index after clamping.
func (e *Editor) cursor2Row(row int) int {
	if total := e.Layout().TotalRows(); row >= total {
		return total - 1
	}
	if row < 0 {
		return 0
	}
	return row
}

// moveVertical steps the cursor between visual rows, carrying the
// preferred display column so traversal across short rows does not lose
// horizontal position.
func (e *Editor) moveVertical(dir int, selecting bool) {
	layout := e.Layout()
	row, displayCol := layout.RowForChar(e.buf, e.cursor, e.affinity)

	preferred := displayCol
	if e.preferredCol != nil {
		preferred = *e.preferredCol
	} else {
		// A cursor exactly at the wrap width means end-of-row intent.
		if displayCol >= layout.wrapCols {
			preferred = layout.wrapCols
		}
		e.preferredCol = &preferred
	}

	target := row + dir
	if target < 0 || target >= layout.TotalRows() {
		// Hitting the boundary pins to the document edge.
		if dir < 0 {
			e.setCursor(0, selecting)
		} else {
			e.setCursor(e.buf.LenChars(), selecting)
		}
		return
	}

	pos := layout.DisplayColumnToChar(e.buf, target, preferred)
	_, rowEnd := layout.RowCharRange(e.buf, target)
	if pos >= rowEnd && preferred >= layout.wrapCols {
		e.affinity = AffinityUpstream
	} else {
		e.affinity = AffinityDownstream
	}
	e.setCursor(pos, selecting)
}

// movePage is N vertical moves where N = floor(viewport / line height).
func (e *Editor) movePage(dir int, selecting bool) {
	n := 1
	if e.lineHeightPx > 0 {
		if steps := int(e.viewportHeightPx / e.lineHeightPx); steps > 1 {
			n = steps
		}
	}
	for i := 0; i < n; i++ {
		e.moveVertical(dir, selecting)
	}
}

// --- editing ---

// replaceRange mutates the buffer, patches the wrap cache, and optionally
// records the edit. IME intermediate preedit changes pass record=false.
func (e *Editor) replaceRange(start, end int, text string, intent EditIntent, record bool) {
	start = e.clampOffset(start)
	end = e.clampOffset(end)
	if end < start {
		start, end = end, start
	}
	deleted := e.buf.SliceChars(start, end)
	if deleted == "" && text == "" {
		return
	}

	before := e.cursor
	delta := e.buf.ReplaceCharRange(start, end, text)
	if delta != nil {
		key := e.geometryKey()
		if !e.wrap.ApplyDelta(e.buf, delta, key) {
			e.wrap.Rebuild(e.buf, key)
		}
	}

	e.anchor = nil
	e.resetColumnIntent()
	e.cursor = e.clampToRenderCap(start + utf8.RuneCountInString(text))

	if record {
		e.history.Push(RecordedEdit{
			Start:        start,
			Deleted:      deleted,
			Inserted:     text,
			Intent:       intent,
			BeforeCursor: e.clampToRenderCap(before),
			AfterCursor:  e.cursor,
		})
	}
}

func (e *Editor) clampOffset(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > e.buf.LenChars() {
		return e.buf.LenChars()
	}
	return pos
}

func (e *Editor) insert(text string, intent EditIntent) {
	if start, end, ok := e.Selection(); ok {
		e.replaceRange(start, end, text, IntentReplace, true)
		return
	}
	e.replaceRange(e.cursor, e.cursor, text, intent, true)
}

func (e *Editor) deleteRange(start, end int, intent EditIntent) {
	if start == end {
		return
	}
	e.replaceRange(start, end, "", intent, true)
}

func (e *Editor) deleteBackward(word bool) {
	if start, end, ok := e.Selection(); ok {
		e.deleteRange(start, end, IntentDeleteBackward)
		return
	}
	if e.cursor == 0 {
		return
	}
	start := e.cursor - 1
	if word {
		start = e.wordLeft(e.cursor)
	}
	e.deleteRange(start, e.cursor, IntentDeleteBackward)
}

func (e *Editor) deleteForward(word bool) {
	if start, end, ok := e.Selection(); ok {
		e.deleteRange(start, end, IntentDeleteForward)
		return
	}
	if e.cursor >= e.buf.LenChars() {
		return
	}
	end := e.cursor + 1
	if word {
		end = e.wordRight(e.cursor)
	}
	e.deleteRange(e.cursor, end, IntentDeleteForward)
}

// --- undo/redo ---

func (e *Editor) undo() {
	edit, ok := e.history.Undo()
	if !ok {
		return
	}
	e.imeClear()
	end := edit.Start + utf8.RuneCountInString(edit.Inserted)
	e.buf.ReplaceCharRange(edit.Start, end, edit.Deleted)
	e.wrap.Rebuild(e.buf, e.geometryKey())
	e.anchor = nil
	e.resetColumnIntent()
	e.cursor = e.clampToRenderCap(edit.BeforeCursor)
}

func (e *Editor) redo() {
	edit, ok := e.history.Redo()
	if !ok {
		return
	}
	e.imeClear()
	end := edit.Start + utf8.RuneCountInString(edit.Deleted)
	e.buf.ReplaceCharRange(edit.Start, end, edit.Inserted)
	e.wrap.Rebuild(e.buf, e.geometryKey())
	e.anchor = nil
	e.resetColumnIntent()
	e.cursor = e.clampToRenderCap(edit.AfterCursor)
}

// --- IME ---

func (e *Editor) imePreedit(text string) {
	// A selection is consumed by the first preedit change, recorded as one
	// replace step so undo restores it.
	if start, end, ok := e.Selection(); ok && !e.ime.PreeditActive {
		e.replaceRange(start, end, "", IntentReplace, true)
	}

	start := e.cursor
	end := e.cursor
	if e.ime.PreeditActive {
		start = e.ime.PreeditStart
		end = e.ime.PreeditEnd
	}
	// Intermediate preedit swaps never record.
	e.replaceRange(start, end, text, IntentImeCommit, false)
	if text == "" {
		e.ime.PreeditActive = false
		e.ime.PreeditText = ""
		return
	}
	e.ime.PreeditActive = true
	e.ime.PreeditStart = start
	e.ime.PreeditEnd = start + utf8.RuneCountInString(text)
	e.ime.PreeditText = text
}

func (e *Editor) imeCommit(text string) {
	start := e.cursor
	end := e.cursor
	if e.ime.PreeditActive {
		start = e.ime.PreeditStart
		end = e.ime.PreeditEnd
	}
	e.ime.PreeditActive = false
	e.ime.PreeditText = ""
	// The preedit text was never recorded, so it must not appear as the
	// Deleted side of the committed edit: drop it outside history, then
	// record the commit as a plain insertion.
	e.replaceRange(start, end, "", IntentImeCommit, false)
	e.replaceRange(start, start, text, IntentImeCommit, true)
}

// imeClear drops an in-flight preedit, removing its uncommitted text.
func (e *Editor) imeClear() {
	if !e.ime.PreeditActive {
		return
	}
	start := e.ime.PreeditStart
	end := e.ime.PreeditEnd
	e.ime.PreeditActive = false
	e.ime.PreeditText = ""
	e.buf.ReplaceCharRange(start, end, "")
	e.wrap.Rebuild(e.buf, e.geometryKey())
	e.cursor = e.clampToRenderCap(start)
}

// SelectWordAt selects the word under pos (double-click), bounded by the
// render cap.
func (e *Editor) SelectWordAt(pos int) {
	pos = e.clampToRenderCap(pos)
	start := e.wordLeft(pos + 1)
	if start > pos {
		start = pos
	}
	end := e.wordRight(pos)
	a := start
	e.anchor = &a
	e.cursor = e.clampToRenderCap(end)
}

// SelectLineAt selects the visible portion of the physical line under pos
// (triple-click): the render cap bounds the selection end.
func (e *Editor) SelectLineAt(pos int) {
	line, _ := e.buf.CharToLineCol(pos)
	start := e.buf.LineColToChar(line, 0)
	a := start
	e.anchor = &a
	e.cursor = e.lineRenderEnd(line)
}

// Text returns the buffer content.
func (e *Editor) Text() string { return e.buf.Text() }

// History exposes the undo history.
func (e *Editor) History() *History { return e.history }
