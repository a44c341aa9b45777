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

package process

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/id"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultWorkers         = 4
	DefaultMaxLatestErrors = 32
)

type ManagerConfig struct {
	// Workers bounds the number of processes running at the same time.
	Workers int
	// MaxLatestErrors bounds the failures kept for reporting.
	MaxLatestErrors int
}

// Manager owns the live processes of a project. A process is registered on submission and
// deregistered as soon as it reaches a terminal state.
type Manager struct {
	logger *zap.Logger
	cfg    ManagerConfig
	ids    id.Allocator
	slots  *semaphore.Weighted
	wg     sync.WaitGroup

	// lock protects following fields.
	lock         sync.RWMutex
	running      bool
	processes    []*LongRunningProcess
	latestErrors []ErrorInfo
	onSuccess    func(p Process)
}

func NewManager(logger *zap.Logger, cfg ManagerConfig) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxLatestErrors <= 0 {
		cfg.MaxLatestErrors = DefaultMaxLatestErrors
	}
	return &Manager{
		logger:       logger,
		cfg:          cfg,
		ids:          id.NewMonotonicAllocatorFrom(0),
		slots:        semaphore.NewWeighted(int64(cfg.Workers)),
		wg:           sync.WaitGroup{},
		lock:         sync.RWMutex{},
		running:      false,
		processes:    nil,
		latestErrors: nil,
		onSuccess:    nil,
	}
}

// SetSuccessHook registers the function called after a process succeeds.
func (m *Manager) SetSuccessHook(hook func(p Process)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onSuccess = hook
}

func (m *Manager) Start(_ context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.running {
		m.logger.Warn("process manager has already been started")
		return nil
	}
	m.running = true
	return nil
}

// Stop cancels every live process and waits for the workers to return.
func (m *Manager) Stop(ctx context.Context) error {
	m.lock.Lock()
	m.running = false
	processes := make([]*LongRunningProcess, len(m.processes))
	copy(processes, m.processes)
	m.lock.Unlock()

	for _, p := range processes {
		p.Cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrStopTimeout.WithCause(ctx.Err())
	}
}

// Submit registers a new process and schedules it on the worker pool.
func (m *Manager) Submit(ctx context.Context, changeDataID changedata.ID, description string, task Task) (*LongRunningProcess, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.running {
		return nil, ErrManagerStopped.WithMessagef("submit process for %s", changeDataID)
	}

	processID, err := m.allocIDLocked(ctx)
	if err != nil {
		return nil, err
	}

	p := newLongRunningProcess(m.logger, processID, changeDataID, description, task, m.onTerminal)
	m.processes = append(m.processes, p)
	processSubmittedTotal.Inc()
	processLiveGauge.Inc()

	m.wg.Add(1)
	go m.work(p)

	m.logger.Info("process submitted", zap.Int32("processID", p.ID()), zap.Stringer("changeDataID", changeDataID), zap.String("description", description))
	return p, nil
}

// allocIDLocked hands out ids that are never reissued, so a stale id cannot reach a newer process.
// Past math.MaxInt32 the ids wrap around, skipping the ones still live.
func (m *Manager) allocIDLocked(ctx context.Context) (int32, error) {
	for {
		rawID, err := m.ids.Alloc(ctx)
		if err != nil {
			return 0, ErrAllocProcessID.WithCause(err)
		}
		processID := int32((rawID-1)%math.MaxInt32 + 1)
		if m.findLocked(processID) == nil {
			return processID, nil
		}
	}
}

func (m *Manager) findLocked(processID int32) *LongRunningProcess {
	for _, p := range m.processes {
		if p.ID() == processID {
			return p
		}
	}
	return nil
}

// GetProcess returns the live process with the given id.
func (m *Manager) GetProcess(processID int32) (Process, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if p := m.findLocked(processID); p != nil {
		return p, nil
	}
	return nil, ErrProcessNotFound.WithMessagef("processID:%d", processID)
}

// List returns the live processes in submission order.
func (m *Manager) List() []Info {
	m.lock.RLock()
	processes := make([]*LongRunningProcess, len(m.processes))
	copy(processes, m.processes)
	m.lock.RUnlock()

	infos := make([]Info, 0, len(processes))
	for _, p := range processes {
		infos = append(infos, p.Info())
	}
	return infos
}

// ProcessesOf returns the live processes computing change data for the history entry.
func (m *Manager) ProcessesOf(historyEntryID int64) []Process {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var found []Process
	for _, p := range m.processes {
		if p.ChangeDataID().HistoryEntryID == historyEntryID {
			found = append(found, p)
		}
	}
	return found
}

func (m *Manager) LatestErrors() []ErrorInfo {
	m.lock.RLock()
	defer m.lock.RUnlock()

	errs := make([]ErrorInfo, len(m.latestErrors))
	copy(errs, m.latestErrors)
	return errs
}

func (m *Manager) ClearErrors() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.latestErrors = nil
}

func (m *Manager) work(p *LongRunningProcess) {
	defer m.wg.Done()

	// The wait is interrupted when the process is cancelled while pending.
	if err := m.slots.Acquire(p.ctx, 1); err != nil {
		return
	}
	defer m.slots.Release(1)

	p.run()
}

func (m *Manager) onTerminal(p *LongRunningProcess, state State) {
	m.lock.Lock()
	index := -1
	for i, candidate := range m.processes {
		if candidate == p {
			index = i
			break
		}
	}
	if index != -1 {
		m.processes = append(m.processes[:index], m.processes[index+1:]...)
	}
	if state == StateFailed {
		m.recordErrorLocked(p)
	}
	onSuccess := m.onSuccess
	m.lock.Unlock()

	if index == -1 {
		return
	}

	processLiveGauge.Dec()
	processFinishedTotal.WithLabelValues(string(state)).Inc()
	processDuration.WithLabelValues(string(state)).Observe(time.Since(p.createdAt).Seconds())

	if state == StateSucceeded && onSuccess != nil {
		onSuccess(p)
	}
}

func (m *Manager) recordErrorLocked(p *LongRunningProcess) {
	message := "unknown error"
	if p.err != nil {
		message = errors.Cause(p.err).Error()
	}
	m.logger.Error("process failed", zap.Int32("processID", p.ID()), zap.Stringer("changeDataID", p.changeDataID), zap.Error(p.err))

	m.latestErrors = append(m.latestErrors, ErrorInfo{
		ProcessID:    p.ID(),
		Description:  p.description,
		ChangeDataID: p.changeDataID,
		Message:      message,
		Time:         time.Now(),
	})
	if overflow := len(m.latestErrors) - m.cfg.MaxLatestErrors; overflow > 0 {
		m.latestErrors = m.latestErrors[overflow:]
	}
}
