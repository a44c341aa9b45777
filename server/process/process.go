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
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Fsm state change:
// pending -> running -> succeeded | failed
// pending | running -> cancelled
const (
	eventStart   = "EventStart"
	eventSucceed = "EventSucceed"
	eventFail    = "EventFail"
	eventCancel  = "EventCancel"
)

var processEvents = fsm.Events{
	{Name: eventStart, Src: []string{string(StatePending)}, Dst: string(StateRunning)},
	{Name: eventSucceed, Src: []string{string(StateRunning)}, Dst: string(StateSucceeded)},
	{Name: eventFail, Src: []string{string(StateRunning)}, Dst: string(StateFailed)},
	{Name: eventCancel, Src: []string{string(StatePending), string(StateRunning)}, Dst: string(StateCancelled)},
}

// LongRunningProcess runs a Task on the worker pool of its Manager.
type LongRunningProcess struct {
	logger       *zap.Logger
	id           int32
	changeDataID changedata.ID
	description  string
	task         Task
	createdAt    time.Time

	// ctx is canceled on any terminal transition, which releases the resources held by the task.
	ctx    context.Context
	cancel context.CancelFunc

	progress atomic.Int32

	// lock serializes the transitions and protects following fields.
	lock sync.Mutex
	fsm  *fsm.FSM
	err  error

	// onTerminal is called once, out of the lock, after the process reaches a terminal state.
	onTerminal func(p *LongRunningProcess, state State)
}

func newLongRunningProcess(logger *zap.Logger, id int32, changeDataID changedata.ID, description string, task Task,
	onTerminal func(p *LongRunningProcess, state State),
) *LongRunningProcess {
	ctx, cancel := context.WithCancel(context.Background())
	p := &LongRunningProcess{
		logger:       logger.With(zap.Int32("processID", id), zap.Stringer("changeDataID", changeDataID)),
		id:           id,
		changeDataID: changeDataID,
		description:  description,
		task:         task,
		createdAt:    time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		progress:     atomic.Int32{},
		lock:         sync.Mutex{},
		fsm:          nil,
		err:          nil,
		onTerminal:   onTerminal,
	}
	p.fsm = fsm.NewFSM(
		string(StatePending),
		processEvents,
		fsm.Callbacks{
			"enter_state": p.enterStateCallback,
		},
	)
	return p
}

func (p *LongRunningProcess) ID() int32 {
	return p.id
}

func (p *LongRunningProcess) ChangeDataID() changedata.ID {
	return p.changeDataID
}

func (p *LongRunningProcess) Description() string {
	return p.description
}

func (p *LongRunningProcess) State() State {
	return State(p.fsm.Current())
}

func (p *LongRunningProcess) Progress() int {
	return int(p.progress.Load())
}

func (p *LongRunningProcess) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	p.progress.Store(int32(percent))
}

// Err returns the error the task failed with.
func (p *LongRunningProcess) Err() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.err
}

func (p *LongRunningProcess) Info() Info {
	return Info{
		ID:           p.id,
		Description:  p.description,
		State:        p.State(),
		Progress:     p.Progress(),
		ChangeDataID: p.changeDataID,
	}
}

func (p *LongRunningProcess) Cancel() {
	if err := p.transition(eventCancel, nil); err != nil {
		p.logger.Debug("ignore cancel of a finished process", zap.Error(err))
	}
}

// run is called by a worker of the manager.
func (p *LongRunningProcess) run() {
	if err := p.transition(eventStart, nil); err != nil {
		// Cancelled while waiting for a worker.
		return
	}

	err := p.task.Run(p.ctx, p)
	if err != nil {
		err = p.transition(eventFail, err)
	} else {
		p.SetProgress(100)
		err = p.transition(eventSucceed, nil)
	}
	if err != nil {
		p.logger.Debug("process was cancelled before the task returned", zap.Error(err))
	}
}

func (p *LongRunningProcess) transition(event string, cause error) error {
	p.lock.Lock()
	if err := p.fsm.Event(event); err != nil {
		p.lock.Unlock()
		return errors.WithMessagef(err, "process event:%s", event)
	}
	if cause != nil {
		p.err = cause
	}
	state := State(p.fsm.Current())
	p.lock.Unlock()

	if state.IsTerminal() && p.onTerminal != nil {
		p.onTerminal(p, state)
	}
	return nil
}

func (p *LongRunningProcess) enterStateCallback(event *fsm.Event) {
	p.logger.Info("process state changed", zap.String("from", event.Src), zap.String("to", event.Dst))
	if State(event.Dst).IsTerminal() {
		p.cancel()
	}
}
