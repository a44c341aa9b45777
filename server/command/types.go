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

package command

import (
	"context"
	"sync"

	"github.com/openrefine/refine-core/server/process"
)

// History is the part of a project history the commands move around.
type History interface {
	Position() int
	EntryIndex(entryID int64) (int, error)
	PrecedingEntryID(entryID int64) (int64, bool, error)
	UndoRedo(ctx context.Context, entryID int64) error
	UndoAll(ctx context.Context) error
}

type ProcessManager interface {
	GetProcess(processID int32) (process.Process, error)
}

// Project groups what a command needs from an open project. Commands on one project hold Lock for their
// whole run.
type Project struct {
	ID        int64
	History   History
	Processes ProcessManager
	Lock      sync.Locker
}

// Resolver finds an open project. It fails with an UnknownProject error when the project is not open.
type Resolver interface {
	Resolve(projectID int64) (*Project, error)
}

type CancelProcessRequest struct {
	ProjectID int64
	ProcessID int32
	CSRFToken string
}

type CancelProcessResult struct {
	// NewHistoryEntryID is set when the history was rewound. Zero means the history is back to its start.
	NewHistoryEntryID *int64 `json:"newHistoryEntryId,omitempty"`
}

type UndoRedoRequest struct {
	ProjectID int64
	// EntryID is the entry to make the last applied one, zero undoes everything.
	EntryID   int64
	CSRFToken string
}
