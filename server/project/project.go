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

package project

import (
	"context"
	"sync"
	"time"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/command"
	"github.com/openrefine/refine-core/server/history"
	"github.com/openrefine/refine-core/server/id"
	"github.com/openrefine/refine-core/server/operation"
	"github.com/openrefine/refine-core/server/process"
	"github.com/openrefine/refine-core/server/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Project is an open project: its history, the processes computing change data for it and the
// lock serializing the commands run against it.
type Project struct {
	logger    *zap.Logger
	history   *history.History
	processes *process.Manager
	store     changedata.Store
	entryIDs  id.Allocator

	cmdLock sync.Mutex

	// metaLock protects meta.
	metaLock sync.RWMutex
	meta     storage.ProjectMeta
}

// ApplyResult describes the entry added by an operation and the process computing its change data,
// if any.
type ApplyResult struct {
	Entry   history.EntryInfo `json:"historyEntry"`
	Process *process.Info     `json:"process,omitempty"`
}

func newProject(logger *zap.Logger, meta storage.ProjectMeta, h *history.History, processes *process.Manager,
	store changedata.Store, entryIDs id.Allocator,
) *Project {
	p := &Project{
		logger:    logger,
		history:   h,
		processes: processes,
		store:     store,
		entryIDs:  entryIDs,
		cmdLock:   sync.Mutex{},
		metaLock:  sync.RWMutex{},
		meta:      meta,
	}
	processes.SetSuccessHook(p.onProcessSucceeded)
	return p
}

func (p *Project) ID() int64 {
	return p.Meta().ID
}

func (p *Project) Meta() storage.ProjectMeta {
	p.metaLock.RLock()
	defer p.metaLock.RUnlock()

	return p.meta
}

func (p *Project) History() *history.History {
	return p.history
}

func (p *Project) Processes() *process.Manager {
	return p.processes
}

// Command exposes the project to the commands.
func (p *Project) Command() *command.Project {
	return &command.Project{
		ID:        p.ID(),
		History:   p.history,
		Processes: p.processes,
		Lock:      &p.cmdLock,
	}
}

// ApplyOperation plans the operation on the current grid and appends the resulting entry to the
// history. Long running operations get a process filling the change data of the entry.
func (p *Project) ApplyOperation(ctx context.Context, op operation.Operation) (ApplyResult, error) {
	p.cmdLock.Lock()
	defer p.cmdLock.Unlock()

	var result ApplyResult
	current, _, err := p.history.CurrentGrid(ctx)
	if err != nil {
		return result, errors.WithMessage(err, "compute current grid")
	}
	plan, err := op.Plan(current)
	if err != nil {
		if _, ok := coderr.GetCauseCode(err); ok {
			return result, err
		}
		return result, ErrPlanOperation.WithCausef(err, "operation:%s", op.Name())
	}

	rawID, err := p.entryIDs.Alloc(ctx)
	if err != nil {
		return result, ErrAllocID.WithCausef(err, "history entry of project:%d", p.ID())
	}
	entry := &history.Entry{
		ID:          int64(rawID),
		ParentID:    0,
		Description: op.Description(),
		Time:        time.Now(),
		Change:      plan.Change,
	}
	dropped, err := p.history.AddEntry(ctx, entry)
	if err != nil {
		return result, err
	}
	p.touch(entry.Time)
	p.discardEntries(ctx, dropped)

	result.Entry = history.EntryInfo{
		ID:          entry.ID,
		Description: entry.Description,
		Time:        entry.Time,
		Kind:        entry.Change.Kind(),
	}
	if !plan.IsLongRunning() {
		return result, nil
	}

	changeDataID := changedata.ID{HistoryEntryID: entry.ID, Slot: plan.Slot}
	sink := &changeDataSink{logger: p.logger, id: changeDataID, store: p.store, history: p.history}
	compute := plan.Compute
	proc, err := p.processes.Submit(ctx, changeDataID, entry.Description, process.TaskFunc(
		func(ctx context.Context, reporter process.Reporter) error {
			return compute(ctx, reporter, sink)
		}))
	if err != nil {
		return result, errors.WithMessagef(err, "submit process of entry:%d", entry.ID)
	}
	info := proc.Info()
	result.Process = &info
	return result, nil
}

// discardEntries cancels the processes of the dropped entries and forgets their change data.
func (p *Project) discardEntries(ctx context.Context, entryIDs []int64) {
	for _, entryID := range entryIDs {
		for _, proc := range p.processes.ProcessesOf(entryID) {
			proc.Cancel()
		}
		if err := p.store.Discard(ctx, entryID); err != nil {
			p.logger.Warn("discard change data failed", zap.Int64("entryID", entryID), zap.Error(err))
		}
	}
}

func (p *Project) onProcessSucceeded(proc process.Process) {
	entryID := proc.ChangeDataID().HistoryEntryID
	if err := p.history.RefreshEntry(entryID); err != nil {
		p.logger.Debug("refresh entry of finished process", zap.Int64("entryID", entryID), zap.Error(err))
	}
}

func (p *Project) touch(t time.Time) {
	p.metaLock.Lock()
	defer p.metaLock.Unlock()

	p.meta.Modified = t
}

// changeDataSink stores the change data written by a process and makes the history pick it up.
type changeDataSink struct {
	logger  *zap.Logger
	id      changedata.ID
	store   changedata.Store
	history *history.History
}

func (s *changeDataSink) Write(ctx context.Context, data changedata.Data, complete bool) error {
	if err := s.store.Store(ctx, s.id, data, complete); err != nil {
		return err
	}
	// The entry is gone when it was dropped from the history while the process was running.
	if err := s.history.RefreshEntry(s.id.HistoryEntryID); err != nil {
		if coderr.Is(err, coderr.UnknownEntry) {
			s.logger.Debug("change data written for a dropped entry", zap.Stringer("changeDataID", s.id))
			return nil
		}
		return err
	}
	return nil
}
