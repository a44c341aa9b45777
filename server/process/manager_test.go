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
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/id"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitTimeout = 5 * time.Second

func newStartedManager(t *testing.T, workers int) *Manager {
	m := NewManager(zap.NewNop(), ManagerConfig{Workers: workers})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		require.NoError(t, m.Stop(ctx))
	})
	return m
}

// blockingTask runs until its context is done or release is closed.
func blockingTask(started chan<- struct{}, release <-chan struct{}) TaskFunc {
	return func(ctx context.Context, reporter Reporter) error {
		reporter.SetProgress(10)
		if started != nil {
			close(started)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}
}

func waitUntilGone(t *testing.T, m *Manager, processID int32) {
	require.Eventually(t, func() bool {
		_, err := m.GetProcess(processID)
		return coderr.Is(err, coderr.ProcessNotFound)
	}, waitTimeout, 5*time.Millisecond)
}

func TestSubmitAndSucceed(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 2)
	succeeded := make(chan Process, 1)
	m.SetSuccessHook(func(p Process) { succeeded <- p })

	started, release := make(chan struct{}), make(chan struct{})
	changeDataID := changedata.ID{HistoryEntryID: 1234, Slot: "s"}
	p, err := m.Submit(ctx, changeDataID, "compute", blockingTask(started, release))
	re.NoError(err)
	re.Equal(int32(1), p.ID())
	<-started

	got, err := m.GetProcess(p.ID())
	re.NoError(err)
	re.Equal(changeDataID, got.ChangeDataID())
	re.Equal(StateRunning, got.State())

	infos := m.List()
	re.Len(infos, 1)
	re.Equal("compute", infos[0].Description)
	re.Equal(10, infos[0].Progress)
	re.Len(m.ProcessesOf(1234), 1)
	re.Empty(m.ProcessesOf(5678))

	close(release)
	select {
	case done := <-succeeded:
		re.Equal(p.ID(), done.ID())
	case <-time.After(waitTimeout):
		re.FailNow("process did not succeed")
	}
	re.Equal(StateSucceeded, p.State())
	re.Equal(100, p.Progress())
	waitUntilGone(t, m, p.ID())
}

func TestCancelRunningProcess(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 1)
	started := make(chan struct{})
	p, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1234, Slot: "s"}, "compute", blockingTask(started, nil))
	re.NoError(err)
	<-started

	p.Cancel()
	re.Equal(StateCancelled, p.State())
	// Deregistration happens before Cancel returns.
	_, err = m.GetProcess(p.ID())
	re.True(coderr.Is(err, coderr.ProcessNotFound))

	// Cancel is idempotent.
	p.Cancel()
	re.Equal(StateCancelled, p.State())
	re.Empty(m.LatestErrors())
}

func TestCancelPendingProcess(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 1)
	started, release := make(chan struct{}), make(chan struct{})
	first, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "first", blockingTask(started, release))
	re.NoError(err)
	<-started

	ran := make(chan struct{}, 1)
	second, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 2, Slot: "s"}, "second", TaskFunc(func(context.Context, Reporter) error {
		ran <- struct{}{}
		return nil
	}))
	re.NoError(err)
	re.Equal(StatePending, second.State())

	second.Cancel()
	re.Equal(StateCancelled, second.State())
	close(release)
	waitUntilGone(t, m, first.ID())

	select {
	case <-ran:
		re.FailNow("cancelled process must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelFinishedProcessIsNoop(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 1)
	p, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "fail", TaskFunc(func(context.Context, Reporter) error {
		return fmt.Errorf("remote host unreachable")
	}))
	re.NoError(err)
	waitUntilGone(t, m, p.ID())

	re.Equal(StateFailed, p.State())
	p.Cancel()
	re.Equal(StateFailed, p.State())
	re.Error(p.Err())

	errs := m.LatestErrors()
	re.Len(errs, 1)
	re.Equal(p.ID(), errs[0].ProcessID)
	re.Equal("remote host unreachable", errs[0].Message)

	m.ClearErrors()
	re.Empty(m.LatestErrors())
}

func TestProcessIDsAreNotReissued(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 2)
	started := make(chan struct{})
	p1, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "one", blockingTask(started, nil))
	re.NoError(err)
	<-started
	re.Equal(int32(1), p1.ID())

	p1.Cancel()
	_, err = m.GetProcess(p1.ID())
	re.True(coderr.Is(err, coderr.ProcessNotFound))

	p2, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 2, Slot: "s"}, "two", blockingTask(nil, nil))
	re.NoError(err)
	re.Equal(int32(2), p2.ID())

	_, err = m.GetProcess(p1.ID())
	re.True(coderr.Is(err, coderr.ProcessNotFound))
}

func TestProcessIDsWrapAroundSkippingLive(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 4)
	m.ids = id.NewMonotonicAllocatorFrom(math.MaxInt32 - 1)

	last, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "last", blockingTask(nil, nil))
	re.NoError(err)
	re.Equal(int32(math.MaxInt32), last.ID())

	wrapped, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 2, Slot: "s"}, "wrapped", blockingTask(nil, nil))
	re.NoError(err)
	re.Equal(int32(1), wrapped.ID())

	// The next pass over the id space meets both live processes.
	m.ids = id.NewMonotonicAllocatorFrom(math.MaxInt32*2 - 1)
	next, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 3, Slot: "s"}, "next", blockingTask(nil, nil))
	re.NoError(err)
	re.Equal(int32(2), next.ID())
}

func TestConcurrentCancel(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := newStartedManager(t, 1)
	started := make(chan struct{})
	p, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "compute", blockingTask(started, nil))
	re.NoError(err)
	<-started

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Cancel()
		}()
	}
	wg.Wait()
	re.Equal(StateCancelled, p.State())
	re.Empty(m.List())
}

func TestStop(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	m := NewManager(zap.NewNop(), ManagerConfig{Workers: 1})
	_, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "early", blockingTask(nil, nil))
	re.True(coderr.Is(err, coderr.Internal))

	re.NoError(m.Start(ctx))
	started := make(chan struct{})
	p, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 1, Slot: "s"}, "compute", blockingTask(started, nil))
	re.NoError(err)
	<-started

	stopCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	re.NoError(m.Stop(stopCtx))
	re.Equal(StateCancelled, p.State())
	re.Empty(m.List())
}
