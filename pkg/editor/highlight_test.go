package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitRender(t *testing.T, w *HighlightWorker) HighlightRender {
	t.Helper()
	select {
	case r := <-w.Renders():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for highlight render")
		return HighlightRender{}
	}
}

func TestWorkerRendersLines(t *testing.T) {
	w := NewHighlightWorker(nil)
	defer w.Close()

	w.Submit(HighlightRequest{
		PasteID:  "p1",
		Revision: 1,
		Text:     "x := 42 // answer\nplain",
	})
	render := waitRender(t, w)

	require.Len(t, render.Lines, 2)
	assert.Equal(t, "p1", render.PasteID)

	styles := make(map[string]bool)
	for _, span := range render.Lines[0].Spans {
		styles[span.Style] = true
	}
	assert.True(t, styles["number"])
	assert.True(t, styles["comment"])
	assert.Empty(t, render.Lines[1].Spans)
}

func TestRenderMatchesContext(t *testing.T) {
	r := HighlightRender{
		PasteID:      "p1",
		Revision:     7,
		TextLen:      10,
		LanguageHint: "go",
		ThemeKey:     "dark",
	}
	assert.True(t, r.MatchesContext("p1", "go", "dark", 7, 10))
	assert.False(t, r.MatchesContext("p2", "go", "dark", 7, 10))
	assert.False(t, r.MatchesContext("p1", "go", "dark", 8, 10), "stale revision must not apply")
	assert.False(t, r.MatchesContext("p1", "go", "light", 7, 10))
}

func TestLineCacheReuseRequiresStateAndHash(t *testing.T) {
	calls := 0
	counting := func(line string, state parserState, lang string) ([]HighlightSpan, parserState) {
		calls++
		return scanLine(line, state, lang)
	}
	w := &HighlightWorker{highlight: counting}

	w.render(HighlightRequest{PasteID: "p", Text: "aaa\nbbb\nccc"})
	require.Equal(t, 3, calls)

	// Identical text: everything served from cache.
	w.render(HighlightRequest{PasteID: "p", Text: "aaa\nbbb\nccc"})
	assert.Equal(t, 3, calls)

	// Changing one line re-scans only it when entry states still match.
	w.render(HighlightRequest{PasteID: "p", Text: "aaa\nBBB\nccc"})
	assert.Equal(t, 4, calls)

	// A line opening a block comment changes downstream entry states, so
	// the following lines must re-scan even with unchanged hashes.
	w.render(HighlightRequest{PasteID: "p", Text: "/* open\nBBB\nccc"})
	assert.Equal(t, 7, calls)
}

func TestCacheInvalidatedAcrossContexts(t *testing.T) {
	calls := 0
	counting := func(line string, state parserState, lang string) ([]HighlightSpan, parserState) {
		calls++
		return nil, state
	}
	w := &HighlightWorker{highlight: counting}

	w.render(HighlightRequest{PasteID: "p1", Text: "same"})
	w.render(HighlightRequest{PasteID: "p2", Text: "same"})
	assert.Equal(t, 2, calls, "a different paste must not reuse cached lines")
}

func TestBlockCommentStateSpansLines(t *testing.T) {
	spans, state := scanLine("before /* open", parserState{}, "")
	assert.True(t, state.inBlockComment)
	_ = spans

	spans, state = scanLine("inside", state, "")
	require.Len(t, spans, 1)
	assert.Equal(t, "comment", spans[0].Style)
	assert.True(t, state.inBlockComment)

	_, state = scanLine("done */ after", state, "")
	assert.False(t, state.inBlockComment)
}

func TestDebouncerThreshold(t *testing.T) {
	d := NewDebouncer(10)
	assert.False(t, d.ShouldSubmit(4))
	assert.False(t, d.ShouldSubmit(3))
	assert.True(t, d.ShouldSubmit(5), "accumulated change crosses the threshold")
	assert.False(t, d.ShouldSubmit(2), "the counter resets after a submit")

	always := NewDebouncer(0)
	assert.True(t, always.ShouldSubmit(1))
}

func TestSubmitCoalescesBacklog(t *testing.T) {
	w := NewHighlightWorker(func(line string, state parserState, lang string) ([]HighlightSpan, parserState) {
		time.Sleep(10 * time.Millisecond)
		return nil, state
	})
	defer w.Close()

	for rev := uint64(1); rev <= 20; rev++ {
		w.Submit(HighlightRequest{PasteID: "p", Revision: rev, Text: "x"})
	}

	// The last render observed must be the latest revision; intermediate
	// revisions may be dropped but never reordered.
	deadline := time.After(5 * time.Second)
	var last uint64
	for last != 20 {
		select {
		case r := <-w.Renders():
			assert.GreaterOrEqual(t, r.Revision, last)
			last = r.Revision
		case <-deadline:
			t.Fatalf("never observed the latest revision; got %d", last)
		}
	}
}
