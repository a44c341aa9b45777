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
	"time"

	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
)

// ChangeContext is what a change may consult besides the grid it is applied to.
type ChangeContext struct {
	EntryID int64
	Loader  changedata.Loader
}

// Change is a reversible edit of a grid. Changes are immutable: undoing a change means replaying
// the entries before it from a cached grid, so no inverse operation is required.
type Change interface {
	Kind() string
	// Apply returns the grid with the change applied. The returned flag is false when some cells
	// are still waiting for change data.
	Apply(ctx context.Context, g *grid.Grid, cc ChangeContext) (*grid.Grid, bool, error)
}

type Entry struct {
	ID int64
	// ParentID is the id of the preceding entry, zero for the first entry.
	ParentID    int64
	Description string
	Time        time.Time
	Change      Change
}

// EntryInfo is the read-only view of an entry returned to callers.
type EntryInfo struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
	Kind        string    `json:"kind"`
}

type Snapshot struct {
	Past     []EntryInfo `json:"past"`
	Future   []EntryInfo `json:"future"`
	Position int         `json:"position"`
}

// Journal persists the mutations of a History. Every method is called with the history lock held
// and before the in-memory state changes, so a failed call leaves the history untouched.
type Journal interface {
	// PutEntry stores entry at index and drops every entry stored after it.
	PutEntry(ctx context.Context, index int, entry *Entry) error
	PutPosition(ctx context.Context, position int) error
}

func (e *Entry) info() EntryInfo {
	return EntryInfo{
		ID:          e.ID,
		Description: e.Description,
		Time:        e.Time,
		Kind:        e.Change.Kind(),
	}
}
