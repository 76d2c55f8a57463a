package editor

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HighlightRequest is an owned snapshot submitted to the worker.
type HighlightRequest struct {
	PasteID      string
	Revision     uint64
	Text         string
	LanguageHint string
	ThemeKey     string
	EditHint     *EditDelta
}

// HighlightSpan styles a char range within one line.
type HighlightSpan struct {
	Start int
	End   int
	Style string
}

// HighlightLine is one rendered line.
type HighlightLine struct {
	Len   int
	Spans []HighlightSpan
}

// HighlightRender is the worker's output for one request.
type HighlightRender struct {
	PasteID      string
	Revision     uint64
	TextLen      int
	LanguageHint string
	ThemeKey     string
	Lines        []HighlightLine
}

// MatchesContext reports whether a render still applies to the current
// editing context; stale renders are dropped on the main thread.
func (r *HighlightRender) MatchesContext(pasteID, languageHint, themeKey string, revision uint64, textLen int) bool {
	return r.PasteID == pasteID &&
		r.LanguageHint == languageHint &&
		r.ThemeKey == themeKey &&
		r.Revision == revision &&
		r.TextLen == textLen
}

// parserState is the start-of-line scanner state; a cached line is valid
// only if both its hash and its entry state match.
type parserState struct {
	inBlockComment bool
	inString       byte // the open quote, or 0
}

// LineHighlighter produces spans for one line given its entry state and
// returns the exit state. Pure function so the worker can swap
// implementations per language.
type LineHighlighter func(line string, state parserState, language string) ([]HighlightSpan, parserState)

type lineCacheEntry struct {
	hash       uint64
	startState parserState
	spans      []HighlightSpan
	endState   parserState
}

// submitQueueDepth bounds the worker inbox; the drain loop coalesces to the
// latest request so depth only smooths bursts.
const submitQueueDepth = 64

// HighlightWorker runs highlighting on its own goroutine, communicating
// only through channels carrying owned values. On backlog it drains all
// pending requests and keeps the latest.
type HighlightWorker struct {
	requests  chan HighlightRequest
	renders   chan HighlightRender
	done      chan struct{}
	highlight LineHighlighter
	cache     []lineCacheEntry
	cacheKey  string // paste + language + theme the cache belongs to
}

// NewHighlightWorker starts the worker goroutine. A nil highlighter uses
// the built-in scanner.
func NewHighlightWorker(highlight LineHighlighter) *HighlightWorker {
	if highlight == nil {
		highlight = scanLine
	}
	w := &HighlightWorker{
		requests:  make(chan HighlightRequest, submitQueueDepth),
		renders:   make(chan HighlightRender, submitQueueDepth),
		done:      make(chan struct{}),
		highlight: highlight,
	}
	go w.run()
	return w
}

// Submit enqueues a request. A full queue drops the oldest pending request
// first; the worker coalesces to the latest anyway.
func (w *HighlightWorker) Submit(req HighlightRequest) {
	for {
		select {
		case w.requests <- req:
			return
		default:
			select {
			case <-w.requests:
			default:
			}
		}
	}
}

// Renders is the output channel the main thread drains each frame.
func (w *HighlightWorker) Renders() <-chan HighlightRender { return w.renders }

// Close stops the worker.
func (w *HighlightWorker) Close() {
	close(w.done)
}

func (w *HighlightWorker) run() {
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			// Coalesce: drain the backlog, keep only the latest.
			for {
				select {
				case next := <-w.requests:
					req = next
					continue
				default:
				}
				break
			}
			render := w.render(req)
			select {
			case w.renders <- render:
			case <-w.done:
				return
			}
		}
	}
}

func (w *HighlightWorker) render(req HighlightRequest) HighlightRender {
	key := req.PasteID + "\x00" + req.LanguageHint + "\x00" + req.ThemeKey
	if key != w.cacheKey {
		w.cache = nil
		w.cacheKey = key
	}

	lines := strings.Split(req.Text, "\n")
	out := make([]HighlightLine, len(lines))
	fresh := make([]lineCacheEntry, len(lines))

	state := parserState{}
	for i, line := range lines {
		hash := xxhash.Sum64String(line)
		// Reuse iff the entry state and the content hash both match.
		if i < len(w.cache) && w.cache[i].hash == hash && w.cache[i].startState == state {
			fresh[i] = w.cache[i]
			out[i] = HighlightLine{Len: len([]rune(line)), Spans: w.cache[i].spans}
			state = w.cache[i].endState
			continue
		}
		spans, next := w.highlight(line, state, req.LanguageHint)
		fresh[i] = lineCacheEntry{hash: hash, startState: state, spans: spans, endState: next}
		out[i] = HighlightLine{Len: len([]rune(line)), Spans: spans}
		state = next
	}
	w.cache = fresh

	return HighlightRender{
		PasteID:      req.PasteID,
		Revision:     req.Revision,
		TextLen:      len([]rune(req.Text)),
		LanguageHint: req.LanguageHint,
		ThemeKey:     req.ThemeKey,
		Lines:        out,
	}
}

// Debouncer gates highlight submissions on the main thread: tiny edits are
// batched until the accumulated change crosses the byte threshold.
type Debouncer struct {
	threshold int
	pending   int
}

// NewDebouncer builds a debouncer with the given byte threshold; values
// below one submit every edit.
func NewDebouncer(thresholdBytes int) *Debouncer {
	return &Debouncer{threshold: thresholdBytes}
}

// ShouldSubmit accumulates changedBytes and reports whether to submit now,
// resetting on true.
func (d *Debouncer) ShouldSubmit(changedBytes int) bool {
	if changedBytes < 0 {
		changedBytes = -changedBytes
	}
	d.pending += changedBytes
	if d.threshold <= 0 || d.pending >= d.threshold {
		d.pending = 0
		return true
	}
	return false
}

// scanLine is the built-in single-pass scanner: block and line comments,
// strings, and numbers. It is deliberately coarse; exact grammars belong to
// the theme layer.
func scanLine(line string, state parserState, language string) ([]HighlightSpan, parserState) {
	var spans []HighlightSpan
	runes := []rune(line)
	i := 0

	flush := func(start, end int, style string) {
		if end > start {
			spans = append(spans, HighlightSpan{Start: start, End: end, Style: style})
		}
	}

	for i < len(runes) {
		switch {
		case state.inBlockComment:
			start := i
			for i < len(runes) {
				if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
					i += 2
					state.inBlockComment = false
					break
				}
				i++
			}
			flush(start, i, "comment")
		case state.inString != 0:
			start := i
			for i < len(runes) {
				if runes[i] == '\\' {
					i += 2
					continue
				}
				if byte(runes[i]) == state.inString {
					i++
					state.inString = 0
					break
				}
				i++
			}
			flush(start, i, "string")
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '/':
			flush(i, len(runes), "comment")
			i = len(runes)
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			state.inBlockComment = true
		case runes[i] == '"' || runes[i] == '\'' || runes[i] == '`':
			state.inString = byte(runes[i])
			i++
		case runes[i] >= '0' && runes[i] <= '9':
			start := i
			for i < len(runes) && (runes[i] == '.' || (runes[i] >= '0' && runes[i] <= '9')) {
				i++
			}
			flush(start, i, "number")
		default:
			i++
		}
	}

	// Single-quote strings never span lines in the supported grammars.
	if state.inString == '\'' {
		state.inString = 0
	}
	return spans, state
}
