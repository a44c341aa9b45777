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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/command"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
	"github.com/openrefine/refine-core/server/id"
	"github.com/openrefine/refine-core/server/process"
	"github.com/openrefine/refine-core/server/storage"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type ManagerConfig struct {
	Process process.ManagerConfig
}

// Manager is the registry of the open projects. Without a storage the projects only live in memory.
type Manager struct {
	logger     *zap.Logger
	cfg        ManagerConfig
	storage    storage.Storage
	store      changedata.Store
	projectIDs id.Allocator
	entryIDs   id.Allocator

	// lock protects following fields.
	lock     sync.RWMutex
	running  bool
	projects map[int64]*Project
}

func NewManager(logger *zap.Logger, cfg ManagerConfig, st storage.Storage, store changedata.Store,
	projectIDs, entryIDs id.Allocator,
) *Manager {
	return &Manager{
		logger:     logger,
		cfg:        cfg,
		storage:    st,
		store:      store,
		projectIDs: projectIDs,
		entryIDs:   entryIDs,
		lock:       sync.RWMutex{},
		running:    false,
		projects:   make(map[int64]*Project),
	}
}

// Start opens every persisted project.
func (m *Manager) Start(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.running {
		m.logger.Warn("project manager has already been started")
		return nil
	}

	if m.storage != nil {
		metas, err := m.storage.ListProjects(ctx)
		if err != nil {
			return errors.WithMessage(err, "list persisted projects")
		}
		for _, meta := range metas {
			record, err := m.storage.LoadProject(ctx, meta.ID)
			if err != nil {
				return errors.WithMessagef(err, "load project:%d", meta.ID)
			}
			h, err := history.Restore(m.projectLogger(meta.ID), record.Initial, m.store, m.storage.Journal(meta.ID), record.Entries, record.Position)
			if err != nil {
				return errors.WithMessagef(err, "restore history of project:%d", meta.ID)
			}
			if _, err := m.openLocked(ctx, record.Meta, h); err != nil {
				return err
			}
		}
		m.logger.Info("persisted projects opened", zap.Int("count", len(metas)))
	}

	m.running = true
	return nil
}

// Stop closes every open project.
func (m *Manager) Stop(ctx context.Context) error {
	m.lock.Lock()
	m.running = false
	projects := m.projects
	m.projects = make(map[int64]*Project)
	m.lock.Unlock()

	var err error
	for _, p := range projects {
		err = multierr.Append(err, p.processes.Stop(ctx))
	}
	return err
}

// Create persists a new project on top of the initial grid and opens it.
func (m *Manager) Create(ctx context.Context, name string, initial *grid.Grid) (*Project, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return nil, ErrInvalidName.WithMessagef("empty name")
	}
	if initial == nil {
		initial = grid.Empty()
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.running {
		return nil, ErrManagerStopped.WithMessagef("create project:%s", name)
	}

	rawID, err := m.projectIDs.Alloc(ctx)
	if err != nil {
		return nil, ErrAllocID.WithCausef(err, "project:%s", name)
	}
	now := time.Now()
	meta := storage.ProjectMeta{
		ID:       int64(rawID),
		Name:     name,
		Created:  now,
		Modified: now,
	}

	var journal history.Journal
	if m.storage != nil {
		if err := m.storage.CreateProject(ctx, meta, initial); err != nil {
			return nil, errors.WithMessagef(err, "persist project:%d", meta.ID)
		}
		journal = m.storage.Journal(meta.ID)
	}

	h := history.New(m.projectLogger(meta.ID), initial, m.store, journal)
	p, err := m.openLocked(ctx, meta, h)
	if err != nil {
		return nil, err
	}
	m.logger.Info("project created", zap.Int64("projectID", meta.ID), zap.String("name", name), zap.Int("rows", initial.RowCount()))
	return p, nil
}

func (m *Manager) Get(projectID int64) (*Project, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrUnknownProject.WithMessagef("projectID:%d", projectID)
	}
	return p, nil
}

// Resolve finds the open project a command runs against.
func (m *Manager) Resolve(projectID int64) (*command.Project, error) {
	p, err := m.Get(projectID)
	if err != nil {
		return nil, err
	}
	return p.Command(), nil
}

// List returns the metadata of the open projects ordered by id.
func (m *Manager) List() []storage.ProjectMeta {
	m.lock.RLock()
	metas := make([]storage.ProjectMeta, 0, len(m.projects))
	for _, p := range m.projects {
		metas = append(metas, p.Meta())
	}
	m.lock.RUnlock()

	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}

// Close unregisters the project and stops its processes. The persisted state is kept.
func (m *Manager) Close(ctx context.Context, projectID int64) error {
	m.lock.Lock()
	p, ok := m.projects[projectID]
	delete(m.projects, projectID)
	m.lock.Unlock()

	if !ok {
		return ErrUnknownProject.WithMessagef("projectID:%d", projectID)
	}
	m.logger.Info("project closed", zap.Int64("projectID", projectID))
	return p.processes.Stop(ctx)
}

// Delete closes the project and removes its persisted state and change data.
func (m *Manager) Delete(ctx context.Context, projectID int64) error {
	p, err := m.Get(projectID)
	if err != nil {
		return err
	}
	snapshot := p.history.Entries()

	if err := m.Close(ctx, projectID); err != nil {
		return err
	}

	var errs error
	if m.storage != nil {
		errs = multierr.Append(errs, m.storage.DeleteProject(ctx, projectID))
	}
	for _, entries := range [][]history.EntryInfo{snapshot.Past, snapshot.Future} {
		for _, e := range entries {
			errs = multierr.Append(errs, m.store.Discard(ctx, e.ID))
		}
	}
	return errs
}

func (m *Manager) openLocked(ctx context.Context, meta storage.ProjectMeta, h *history.History) (*Project, error) {
	logger := m.projectLogger(meta.ID)
	processes := process.NewManager(logger, m.cfg.Process)
	if err := processes.Start(ctx); err != nil {
		return nil, errors.WithMessagef(err, "start processes of project:%d", meta.ID)
	}
	p := newProject(logger, meta, h, processes, m.store, m.entryIDs)
	m.projects[meta.ID] = p
	return p, nil
}

func (m *Manager) projectLogger(projectID int64) *zap.Logger {
	return m.logger.With(zap.Int64("projectID", projectID))
}
