// Package worker runs the backend thread that owns all GUI-initiated store
// mutations.
//
// The GUI never touches the store directly: it enqueues commands on the
// worker's channel and receives results on per-command reply channels, so
// every mutation is serialized on one goroutine. The worker also tracks
// which paste the editor currently holds open; the HTTP API refuses to
// mutate that paste (423 Locked) while the GUI could be mid-edit.
package worker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/txn"
	"github.com/pszemraj/localpaste/pkg/types"
)

// commandQueueDepth bounds the inbox; the GUI enqueues faster than it can
// possibly type, so this only smooths bursts.
const commandQueueDepth = 256

// Command is one serialized store mutation.
type Command struct {
	run   func() (any, error)
	reply chan Result
}

// Result is a command outcome delivered on the command's reply channel.
type Result struct {
	Value any
	Err   error
}

// Worker owns the command loop.
type Worker struct {
	coord  *txn.Coordinator
	pastes *store.PasteStore

	commands chan Command
	done     chan struct{}
	wg       sync.WaitGroup
	logger   zerolog.Logger

	mu         sync.Mutex
	openPaste  string
	dirtySince time.Time
	pending    *types.UpdatePasteRequest

	autoSaveInterval time.Duration
}

// New starts the worker loop.
func New(coord *txn.Coordinator, pastes *store.PasteStore, autoSaveInterval time.Duration) *Worker {
	w := &Worker{
		coord:            coord,
		pastes:           pastes,
		commands:         make(chan Command, commandQueueDepth),
		done:             make(chan struct{}),
		logger:           log.WithComponent("worker"),
		autoSaveInterval: autoSaveInterval,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Close stops the loop after draining queued commands.
func (w *Worker) Close() {
	close(w.done)
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if w.autoSaveInterval > 0 {
		ticker = time.NewTicker(w.autoSaveInterval)
		tick = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-w.done:
			// Drain what is already queued so no accepted mutation is lost.
			for {
				select {
				case cmd := <-w.commands:
					w.execute(cmd)
				default:
					w.flushPending()
					return
				}
			}
		case cmd := <-w.commands:
			w.execute(cmd)
		case <-tick:
			w.flushPending()
		}
	}
}

func (w *Worker) execute(cmd Command) {
	value, err := cmd.run()
	if cmd.reply != nil {
		cmd.reply <- Result{Value: value, Err: err}
	}
}

// submit enqueues a command and waits for its result.
func (w *Worker) submit(run func() (any, error)) (any, error) {
	reply := make(chan Result, 1)
	w.commands <- Command{run: run, reply: reply}
	res := <-reply
	return res.Value, res.Err
}

// CreatePaste routes a GUI create through the coordinator.
func (w *Worker) CreatePaste(p *types.Paste) error {
	_, err := w.submit(func() (any, error) {
		return nil, w.coord.CreatePaste(p)
	})
	return err
}

// UpdatePaste routes a GUI update through the coordinator.
func (w *Worker) UpdatePaste(id string, req *types.UpdatePasteRequest) (*types.Paste, error) {
	value, err := w.submit(func() (any, error) {
		return w.coord.UpdatePaste(id, req)
	})
	if err != nil || value == nil {
		return nil, err
	}
	return value.(*types.Paste), nil
}

// DeletePaste routes a GUI delete through the coordinator.
func (w *Worker) DeletePaste(id string) (bool, error) {
	value, err := w.submit(func() (any, error) {
		return w.coord.DeletePaste(id)
	})
	if err != nil {
		return false, err
	}
	return value.(bool), nil
}

// DeleteFolderTree routes a GUI folder-tree delete through the coordinator.
func (w *Worker) DeleteFolderTree(rootID string) error {
	_, err := w.submit(func() (any, error) {
		return nil, w.coord.DeleteFolderTree(rootID)
	})
	return err
}

// GetPaste reads directly from the store; reads need no serialization.
func (w *Worker) GetPaste(id string) (*types.Paste, error) {
	return w.pastes.Get(id)
}

// HasUnsavedChanges reports whether staged content awaits persistence.
func (w *Worker) HasUnsavedChanges() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// DirtySince reports when the open paste first diverged from the store.
func (w *Worker) DirtySince() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirtySince, w.pending != nil
}

// --- editor session tracking ---

// OpenPaste marks a paste as held by the editor.
func (w *Worker) OpenPaste(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.openPaste != id {
		w.openPaste = id
		w.pending = nil
	}
}

// ClosePaste releases the editor hold, flushing unsaved changes first.
func (w *Worker) ClosePaste() {
	w.submit(func() (any, error) {
		w.flushPending()
		return nil, nil
	})
	w.mu.Lock()
	w.openPaste = ""
	w.mu.Unlock()
}

// IsPasteLocked implements the API's lock checker.
func (w *Worker) IsPasteLocked(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return id != "" && w.openPaste == id
}

// StageContent records the editor's latest content for the held paste;
// persisted by the next auto-save tick or an explicit flush.
func (w *Worker) StageContent(content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.openPaste == "" {
		return
	}
	c := content
	w.pending = &types.UpdatePasteRequest{Content: &c}
	if w.dirtySince.IsZero() {
		w.dirtySince = time.Now()
	}
}

// flushPending writes staged content through the coordinator.
func (w *Worker) flushPending() {
	w.mu.Lock()
	id := w.openPaste
	req := w.pending
	w.pending = nil
	w.dirtySince = time.Time{}
	w.mu.Unlock()

	if id == "" || req == nil {
		return
	}
	if _, err := w.coord.UpdatePaste(id, req); err != nil {
		w.logger.Error().Err(err).Str("paste_id", id).Msg("auto-save failed")
	}
}
