/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package history

import (
	"context"
	"sync"

	"github.com/openrefine/refine-core/pkg/assert"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type state struct {
	grid     *grid.Grid
	complete bool
}

// History is the ordered log of the changes of a project and the cursor separating the applied
// entries from the ones available to redo.
//
// states[i] caches the grid obtained by applying entries[:i]; states[0] is the initial grid and is
// always present, the other states are computed on demand.
type History struct {
	logger  *zap.Logger
	loader  changedata.Loader
	journal Journal

	// lock protects following fields.
	lock     sync.RWMutex
	entries  []*Entry
	states   []*state
	position int
}

// New creates an empty history on top of the initial grid. The journal is optional.
func New(logger *zap.Logger, initial *grid.Grid, loader changedata.Loader, journal Journal) *History {
	return &History{
		logger:   logger,
		loader:   loader,
		journal:  journal,
		lock:     sync.RWMutex{},
		entries:  nil,
		states:   []*state{{grid: initial, complete: true}},
		position: 0,
	}
}

// Restore rebuilds a history from persisted entries. The grids are recomputed lazily, so an entry
// that no longer applies is only reported when the cursor moves past it.
func Restore(logger *zap.Logger, initial *grid.Grid, loader changedata.Loader, journal Journal, entries []*Entry, position int) (*History, error) {
	if position < 0 || position > len(entries) {
		return nil, ErrInvalidEntry.WithMessagef("position out of range, position:%d, entries:%d", position, len(entries))
	}

	h := New(logger, initial, loader, journal)
	seen := make(map[int64]struct{}, len(entries))
	parentID := int64(0)
	for i, e := range entries {
		if _, ok := seen[e.ID]; ok {
			return nil, ErrDuplicateEntry.WithMessagef("entry:%d", e.ID)
		}
		if e.ParentID != parentID {
			return nil, ErrInvalidEntry.WithMessagef("broken chain at index:%d, entry:%d, parent:%d, expect parent:%d", i, e.ID, e.ParentID, parentID)
		}
		seen[e.ID] = struct{}{}
		parentID = e.ID
		h.entries = append(h.entries, e)
		h.states = append(h.states, nil)
	}
	h.position = position
	return h, nil
}

func (h *History) Position() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return h.position
}

func (h *History) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.entries)
}

// EntryIndex returns the zero-based index of the entry.
func (h *History) EntryIndex(entryID int64) (int, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return h.entryIndexLocked(entryID)
}

// PrecedingEntryID returns the id of the entry right before the given one. The flag is false when
// the entry is the first one.
func (h *History) PrecedingEntryID(entryID int64) (int64, bool, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	idx, err := h.entryIndexLocked(entryID)
	if err != nil {
		return 0, false, err
	}
	if idx == 0 {
		return 0, false, nil
	}
	return h.entries[idx-1].ID, true, nil
}

// Entry returns the entry with the given id.
func (h *History) Entry(entryID int64) (*Entry, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	idx, err := h.entryIndexLocked(entryID)
	if err != nil {
		return nil, err
	}
	return h.entries[idx], nil
}

// Entries returns the applied entries and the ones available to redo.
func (h *History) Entries() Snapshot {
	h.lock.RLock()
	defer h.lock.RUnlock()

	past := make([]EntryInfo, 0, h.position)
	for _, e := range h.entries[:h.position] {
		past = append(past, e.info())
	}
	future := make([]EntryInfo, 0, len(h.entries)-h.position)
	for _, e := range h.entries[h.position:] {
		future = append(future, e.info())
	}
	return Snapshot{Past: past, Future: future, Position: h.position}
}

// AddEntry applies the change of entry on the current grid and appends it right after the
// cursor. Entries available to redo are dropped, their ids are returned.
func (h *History) AddEntry(ctx context.Context, entry *Entry) ([]int64, error) {
	if entry == nil || entry.Change == nil {
		return nil, ErrInvalidEntry.WithMessagef("entry without change")
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if _, err := h.entryIndexLocked(entry.ID); err == nil {
		return nil, ErrDuplicateEntry.WithMessagef("entry:%d", entry.ID)
	}

	computed, err := h.computeLocked(ctx, h.position)
	if err != nil {
		return nil, err
	}
	current := computed[h.position]
	next, complete, err := entry.Change.Apply(ctx, current.grid, ChangeContext{EntryID: entry.ID, Loader: h.loader})
	if err != nil {
		return nil, ErrDoesNotApply.WithCausef(err, "entry:%d, kind:%s", entry.ID, entry.Change.Kind())
	}

	if h.position > 0 {
		entry.ParentID = h.entries[h.position-1].ID
	} else {
		entry.ParentID = 0
	}

	if h.journal != nil {
		if err := h.journal.PutEntry(ctx, h.position, entry); err != nil {
			return nil, ErrJournal.WithCausef(err, "put entry:%d", entry.ID)
		}
		if err := h.journal.PutPosition(ctx, h.position+1); err != nil {
			return nil, ErrJournal.WithCausef(err, "put position:%d", h.position+1)
		}
	}

	dropped := make([]int64, 0, len(h.entries)-h.position)
	for _, e := range h.entries[h.position:] {
		dropped = append(dropped, e.ID)
	}

	h.commitStatesLocked(computed)
	h.entries = append(h.entries[:h.position], entry)
	h.states = append(h.states[:h.position+1], &state{grid: next, complete: complete && current.complete})
	h.position++

	h.logger.Info("history entry added", zap.Int64("entry", entry.ID), zap.String("kind", entry.Change.Kind()),
		zap.Int("position", h.position), zap.Int("dropped", len(dropped)))
	return dropped, nil
}

// UndoRedo moves the cursor so that the entry becomes the last applied one. It is a no-op when
// the entry is already the last applied one. On failure the history is left untouched.
func (h *History) UndoRedo(ctx context.Context, entryID int64) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	idx, err := h.entryIndexLocked(entryID)
	if err != nil {
		return err
	}
	return h.moveLocked(ctx, idx+1)
}

// UndoAll moves the cursor before the first entry.
func (h *History) UndoAll(ctx context.Context) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.moveLocked(ctx, 0)
}

// RefreshEntry drops the cached grids depending on the entry, so that they are recomputed with
// the latest change data.
func (h *History) RefreshEntry(entryID int64) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	idx, err := h.entryIndexLocked(entryID)
	if err != nil {
		return err
	}
	for i := idx + 1; i < len(h.states); i++ {
		h.states[i] = nil
	}
	return nil
}

// CurrentGrid returns the grid at the cursor. The flag is false if some applied change is still
// waiting for change data.
func (h *History) CurrentGrid(ctx context.Context) (*grid.Grid, bool, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	computed, err := h.computeLocked(ctx, h.position)
	if err != nil {
		return nil, false, err
	}
	h.commitStatesLocked(computed)

	s := h.states[h.position]
	return s.grid, s.complete, nil
}

func (h *History) moveLocked(ctx context.Context, target int) error {
	assert.InRange(target, 0, len(h.entries), "history cursor")
	if target == h.position {
		return nil
	}

	computed, err := h.computeLocked(ctx, target)
	if err != nil {
		return err
	}

	if h.journal != nil {
		if err := h.journal.PutPosition(ctx, target); err != nil {
			return ErrJournal.WithCausef(err, "put position:%d", target)
		}
	}

	h.commitStatesLocked(computed)
	h.logger.Info("history cursor moved", zap.Int("from", h.position), zap.Int("to", target))
	h.position = target
	return nil
}

// computeLocked computes the states missing up to target without touching the cache. The returned
// map holds the newly computed states, keyed by their position.
func (h *History) computeLocked(ctx context.Context, target int) (map[int]*state, error) {
	computed := make(map[int]*state)

	base := target
	for h.states[base] == nil {
		base--
	}
	computed[base] = h.states[base]

	current := h.states[base]
	for i := base; i < target; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithMessagef(err, "compute grid at position:%d", target)
		}

		e := h.entries[i]
		next, complete, err := e.Change.Apply(ctx, current.grid, ChangeContext{EntryID: e.ID, Loader: h.loader})
		if err != nil {
			return nil, ErrDoesNotApply.WithCausef(err, "entry:%d, kind:%s", e.ID, e.Change.Kind())
		}
		current = &state{grid: next, complete: complete && current.complete}
		computed[i+1] = current
	}
	return computed, nil
}

func (h *History) commitStatesLocked(computed map[int]*state) {
	for pos, s := range computed {
		h.states[pos] = s
	}
}

func (h *History) entryIndexLocked(entryID int64) (int, error) {
	for i, e := range h.entries {
		if e.ID == entryID {
			return i, nil
		}
	}
	return -1, ErrUnknownEntry.WithMessagef("entry:%d", entryID)
}
