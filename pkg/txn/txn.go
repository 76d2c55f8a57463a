package txn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pszemraj/localpaste/pkg/log"
	"github.com/pszemraj/localpaste/pkg/metrics"
	"github.com/pszemraj/localpaste/pkg/store"
	"github.com/pszemraj/localpaste/pkg/types"
)

// maxMoveRetries caps the move CAS loop; exceeding it returns ErrConflict
// rather than looping indefinitely.
const maxMoveRetries = 8

// drainBatchSize is how many pastes a folder-tree delete unfiles per pass.
const drainBatchSize = 100

// Coordinator serializes all folder-affecting flows behind the process-wide
// folder transaction mutex and compensates around the store's single-table
// writes. Non-folder paste reads and updates bypass it entirely.
type Coordinator struct {
	pastes  *store.PasteStore
	folders *store.FolderStore
	mu      *sync.Mutex
	logger  zerolog.Logger
	fail    failpoints
}

// NewCoordinator binds the stores. The mutex comes from the shared kv store
// handle so every subsystem opening the same database serializes here.
func NewCoordinator(pastes *store.PasteStore, folders *store.FolderStore) *Coordinator {
	return &Coordinator{
		pastes:  pastes,
		folders: folders,
		mu:      pastes.Store().FolderTxnLock(),
		logger:  log.WithComponent("txn"),
	}
}

// ensureAssignable verifies a folder exists and is not inside an in-flight
// tree delete.
func (c *Coordinator) ensureAssignable(folderID string) error {
	if _, err := c.folders.Get(folderID); err != nil {
		if types.IsNotFound(err) {
			return fmt.Errorf("folder %s does not exist: %w", folderID, types.ErrBadRequest)
		}
		return err
	}
	marked, err := c.folders.IsDeleteMarked(folderID)
	if err != nil {
		return err
	}
	if marked {
		return fmt.Errorf("folder %s is being deleted: %w", folderID, types.ErrBadRequest)
	}
	return nil
}

// rollbackReservation undoes a destination paste-count reservation. A
// vanished folder is fine (nothing left to correct); anything else is
// logged — the canonical state is already settled and there is no caller
// action that could help.
func (c *Coordinator) rollbackReservation(folderID string) {
	if err := c.folders.UpdateCount(folderID, -1); err != nil && !types.IsNotFound(err) {
		c.logger.Error().Err(err).Str("folder_id", folderID).
			Msg("failed to roll back folder count reservation")
	}
}

// CreatePaste creates a paste, maintaining the destination folder's count
// when one is set. An unfiled create needs no folder coordination.
func (c *Coordinator) CreatePaste(p *types.Paste) error {
	if p.FolderID == "" {
		return c.pastes.Create(p)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createPasteLocked(p)
}

func (c *Coordinator) createPasteLocked(p *types.Paste) error {
	folderID := p.FolderID

	if err := c.ensureAssignable(folderID); err != nil {
		return err
	}

	// Reserve the destination slot before the canonical write.
	if err := c.folders.UpdateCount(folderID, 1); err != nil {
		if types.IsNotFound(err) {
			return fmt.Errorf("folder %s does not exist: %w", folderID, types.ErrBadRequest)
		}
		return err
	}

	if err := c.fail.hit(c.fail.afterCreateReserve); err != nil {
		c.rollbackReservation(folderID)
		return err
	}

	if err := c.ensureAssignable(folderID); err != nil {
		c.rollbackReservation(folderID)
		return err
	}

	if err := c.pastes.Create(p); err != nil {
		c.rollbackReservation(folderID)
		return err
	}

	if err := c.fail.hit(c.fail.afterCanonicalCreate); err != nil {
		c.compensateCreate(p.ID, folderID)
		return err
	}

	// The folder may have vanished between the canonical commit and now.
	if err := c.ensureAssignable(folderID); err != nil {
		c.compensateCreate(p.ID, folderID)
		return err
	}
	return nil
}

// compensateCreate best-effort deletes a just-created paste and returns the
// reservation, used when the destination folder vanished after the
// canonical commit.
func (c *Coordinator) compensateCreate(pasteID, folderID string) {
	if _, err := c.pastes.Delete(pasteID); err != nil {
		c.logger.Error().Err(err).Str("paste_id", pasteID).
			Msg("failed to delete paste while compensating an aborted create")
	}
	c.rollbackReservation(folderID)
}

// DeletePaste removes a paste and decrements its folder's count. The
// canonical delete is the commit point; a count failure afterwards is
// log-only.
func (c *Coordinator) DeletePaste(pasteID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, err := c.pastes.DeleteAndReturn(pasteID)
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}
	if removed.FolderID != "" {
		if cerr := c.folders.UpdateCount(removed.FolderID, -1); cerr != nil && !types.IsNotFound(cerr) {
			c.logger.Error().Err(cerr).Str("folder_id", removed.FolderID).
				Msg("failed to decrement folder count after paste delete")
		}
	}
	return true, nil
}

// UpdatePaste applies a partial update. Folder changes route through the
// move flow; anything else is a plain single-table update.
func (c *Coordinator) UpdatePaste(pasteID string, req *types.UpdatePasteRequest) (*types.Paste, error) {
	if _, set := req.NormalizedFolderID(); set {
		return c.MovePaste(pasteID, req)
	}
	return c.pastes.Update(pasteID, req)
}

// MovePaste applies a folder-changing update under the folder transaction
// mutex with a bounded compare-and-swap retry loop. Returns nil when the
// paste does not exist and ErrConflict when the retry cap is exhausted.
func (c *Coordinator) MovePaste(pasteID string, req *types.UpdatePasteRequest) (*types.Paste, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newFolder, set := req.NormalizedFolderID()
	if !set {
		return c.pastes.Update(pasteID, req)
	}

	for attempt := 0; attempt < maxMoveRetries; attempt++ {
		current, err := c.pastes.Get(pasteID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}

		oldFolder := current.FolderID
		folderChanging := oldFolder != newFolder
		reserved := false

		if folderChanging && newFolder != "" {
			if err := c.ensureAssignable(newFolder); err != nil {
				return nil, err
			}
			if err := c.folders.UpdateCount(newFolder, 1); err != nil {
				if types.IsNotFound(err) {
					return nil, fmt.Errorf("folder %s does not exist: %w", newFolder, types.ErrBadRequest)
				}
				return nil, err
			}
			reserved = true

			c.fail.pauseAfterMoveReserve()
			if err := c.fail.hit(c.fail.afterMoveReserve); err != nil {
				c.rollbackReservation(newFolder)
				return nil, err
			}

			// The destination may have vanished while we reserved.
			if err := c.ensureAssignable(newFolder); err != nil {
				c.rollbackReservation(newFolder)
				return nil, err
			}
		}

		updated, err := c.pastes.UpdateIfFolderMatches(pasteID, oldFolder, req)
		if err != nil {
			if reserved {
				c.rollbackReservation(newFolder)
			}
			return nil, err
		}
		if updated == nil {
			// CAS mismatch: the folder changed under us, or the paste is
			// gone. Either way the reservation is void.
			if reserved {
				c.rollbackReservation(newFolder)
			}
			still, gerr := c.pastes.Get(pasteID)
			if gerr != nil {
				return nil, gerr
			}
			if still == nil {
				return nil, nil
			}
			metrics.MoveRetries.Inc()
			continue
		}

		if folderChanging && newFolder != "" {
			if err := c.ensureAssignable(newFolder); err != nil {
				// Post-commit verify failed: put the paste back where it
				// was, then drop the reservation.
				revert := oldFolder
				if _, rerr := c.pastes.UpdateIfFolderMatches(pasteID, newFolder, &types.UpdatePasteRequest{FolderID: &revert}); rerr != nil {
					c.logger.Error().Err(rerr).Str("paste_id", pasteID).
						Msg("failed to revert paste folder after destination vanished")
				}
				c.rollbackReservation(newFolder)
				return nil, err
			}
		}

		if folderChanging && oldFolder != "" {
			if cerr := c.folders.UpdateCount(oldFolder, -1); cerr != nil && !types.IsNotFound(cerr) {
				c.logger.Error().Err(cerr).Str("folder_id", oldFolder).
					Msg("failed to decrement source folder count after move")
			}
		}
		return updated, nil
	}

	metrics.MoveConflicts.Inc()
	return nil, fmt.Errorf("move of paste %s: %w", pasteID, types.ErrConflict)
}

// CreateFolder validates the parent and inserts the folder.
func (c *Coordinator) CreateFolder(f *types.Folder) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.ParentID != "" {
		if err := c.ensureAssignable(f.ParentID); err != nil {
			return err
		}
	}
	return c.folders.Create(f)
}

// UpdateFolder renames and/or re-parents a folder under the cycle guard.
func (c *Coordinator) UpdateFolder(id, name string, parentID *string) (*types.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if parentID != nil && *parentID != "" {
		if err := c.ensureAssignable(*parentID); err != nil {
			return nil, err
		}
		folders, err := c.folders.List()
		if err != nil {
			return nil, err
		}
		if introducesCycle(folders, id, *parentID) {
			return nil, fmt.Errorf("moving folder %s under %s would create a cycle: %w", id, *parentID, types.ErrBadRequest)
		}
	}
	return c.folders.Update(id, name, parentID)
}

// DeleteFolderTree deletes a folder and all descendants, migrating their
// pastes to unfiled. The whole flow runs inside the folder transaction
// mutex; pastes are unfiled through the paste store directly, not the move
// path, so folder counts are not double-booked.
func (c *Coordinator) DeleteFolderTree(rootID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	folders, err := c.folders.List()
	if err != nil {
		return err
	}
	if !folderExists(folders, rootID) {
		return fmt.Errorf("folder %s: %w", rootID, types.ErrNotFound)
	}

	order := deleteOrder(folders, rootID)
	if err := c.folders.MarkDeleting(order); err != nil {
		return err
	}

	unfiled := ""
	for _, folderID := range order {
		for {
			metas, lerr := c.pastes.ListMeta(drainBatchSize, &folderID)
			if lerr != nil {
				return lerr
			}
			if len(metas) == 0 {
				break
			}
			progressed := false
			for _, m := range metas {
				updated, uerr := c.pastes.Update(m.ID, &types.UpdatePasteRequest{FolderID: &unfiled})
				if uerr != nil {
					return uerr
				}
				if updated != nil {
					progressed = true
				}
			}
			if !progressed {
				return types.NewStorageError("folder drain",
					fmt.Errorf("no progress unfiling pastes of folder %s", folderID))
			}
		}
		if derr := c.folders.Delete(folderID); derr != nil {
			return derr
		}
		if uerr := c.folders.UnmarkDeleting(folderID); uerr != nil {
			return uerr
		}
	}
	return nil
}

// folderExists scans an already-listed snapshot.
func folderExists(folders []*types.Folder, id string) bool {
	for _, f := range folders {
		if f.ID == id {
			return true
		}
	}
	return false
}

// deleteOrder computes the children-first deletion order: a depth-first
// walk from root whose post-order guarantees every folder is drained and
// deleted before its parent.
func deleteOrder(folders []*types.Folder, rootID string) []string {
	children := make(map[string][]string)
	for _, f := range folders {
		if f.ParentID != "" {
			children[f.ParentID] = append(children[f.ParentID], f.ID)
		}
	}

	var order []string
	visited := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, child := range children[id] {
			walk(child)
		}
		order = append(order, id)
	}
	walk(rootID)
	return order
}

// introducesCycle walks the parent chain upward from newParent through an
// id-to-parent map; placing id under newParent is a cycle if the walk
// reaches id or revisits any node. O(depth), no back-pointers.
func introducesCycle(folders []*types.Folder, id, newParent string) bool {
	if id == newParent {
		return true
	}
	parents := make(map[string]string, len(folders))
	for _, f := range folders {
		parents[f.ID] = f.ParentID
	}

	visited := make(map[string]bool)
	node := newParent
	for node != "" {
		if node == id || visited[node] {
			return true
		}
		visited[node] = true
		node = parents[node]
	}
	return false
}

// StartupMaintenance restores invariants after an unclean shutdown: clear
// stale delete markers (an interrupted tree delete is treated as
// abandoned), rebuild derived indexes when needed, and recount folder
// paste counts from canonical.
func (c *Coordinator) StartupMaintenance(forceReconcile bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.folders.ClearDeleteMarkers(); err != nil {
		return err
	}

	need, err := c.pastes.NeedsReconcile(forceReconcile)
	if err != nil {
		return err
	}
	if need {
		metrics.ReconcileRuns.Inc()
		if err := c.pastes.Reconcile(); err != nil {
			return err
		}
	}

	return c.recountFolderCounts()
}

// recountFolderCounts overwrites every folder's paste_count with the true
// canonical count, healing drift left by a crash mid-flow.
func (c *Coordinator) recountFolderCounts() error {
	counts := make(map[string]int)
	err := c.pastes.ScanCanonicalMeta(func(m *types.PasteMeta) error {
		if m.FolderID != "" {
			counts[m.FolderID]++
		}
		return nil
	})
	if err != nil {
		return err
	}

	folders, err := c.folders.List()
	if err != nil {
		return err
	}
	for _, f := range folders {
		want := counts[f.ID]
		if f.PasteCount == want {
			continue
		}
		c.logger.Warn().Str("folder_id", f.ID).
			Int("stored", f.PasteCount).Int("actual", want).
			Msg("healing folder paste count")
		if err := c.folders.SetCount(f.ID, want); err != nil && !types.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// IsConflict reports whether err is the move-retry-cap error.
func IsConflict(err error) bool { return errors.Is(err, types.ErrConflict) }
