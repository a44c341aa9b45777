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

	"github.com/openrefine/refine-core/server/csrf"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Commands runs the state changing requests against the open projects.
type Commands struct {
	logger   *zap.Logger
	tokens   csrf.Validator
	projects Resolver
}

func New(logger *zap.Logger, tokens csrf.Validator, projects Resolver) *Commands {
	return &Commands{
		logger:   logger,
		tokens:   tokens,
		projects: projects,
	}
}

// CancelProcess cancels a process of a project. When the history entry the process computes data for is
// applied, the history is first moved to the entry before it, and the process is left alone if that fails.
func (c *Commands) CancelProcess(ctx context.Context, req CancelProcessRequest) (CancelProcessResult, error) {
	var result CancelProcessResult
	if err := csrf.Check(c.tokens, req.CSRFToken); err != nil {
		return result, err
	}

	project, err := c.projects.Resolve(req.ProjectID)
	if err != nil {
		return result, err
	}
	project.Lock.Lock()
	defer project.Lock.Unlock()

	p, err := project.Processes.GetProcess(req.ProcessID)
	if err != nil {
		return result, err
	}

	targetEntryID := p.ChangeDataID().HistoryEntryID
	targetIndex, err := project.History.EntryIndex(targetEntryID)
	if err != nil {
		return result, err
	}

	if project.History.Position() > targetIndex {
		newEntryID, err := rewindBefore(ctx, project.History, targetEntryID)
		if err != nil {
			return result, ErrRewindHistory.WithCausef(err, "projectID:%d, processID:%d, entryID:%d", req.ProjectID, req.ProcessID, targetEntryID)
		}
		result.NewHistoryEntryID = &newEntryID
	}

	p.Cancel()
	c.logger.Info("process cancelled", zap.Int64("projectID", req.ProjectID), zap.Int32("processID", req.ProcessID),
		zap.Int64("entryID", targetEntryID), zap.Bool("rewound", result.NewHistoryEntryID != nil))
	return result, nil
}

// rewindBefore moves the history so that the entry is the first not applied and returns the last applied one.
func rewindBefore(ctx context.Context, history History, entryID int64) (int64, error) {
	previousID, ok, err := history.PrecedingEntryID(entryID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, history.UndoAll(ctx)
	}
	if err := history.UndoRedo(ctx, previousID); err != nil {
		return 0, errors.WithMessagef(err, "undo to entry:%d", previousID)
	}
	return previousID, nil
}

// UndoRedo moves the history of a project to the requested entry.
func (c *Commands) UndoRedo(ctx context.Context, req UndoRedoRequest) error {
	if err := csrf.Check(c.tokens, req.CSRFToken); err != nil {
		return err
	}

	project, err := c.projects.Resolve(req.ProjectID)
	if err != nil {
		return err
	}
	project.Lock.Lock()
	defer project.Lock.Unlock()

	if req.EntryID == 0 {
		return project.History.UndoAll(ctx)
	}
	return project.History.UndoRedo(ctx, req.EntryID)
}
