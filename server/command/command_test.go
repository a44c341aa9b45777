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
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
	"github.com/openrefine/refine-core/server/process"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testProjectID  = int64(1234)
	testProcessID  = int32(5678)
	missingProcess = int32(9876)
	targetEntryID  = int64(1234)
	precedingEntry = int64(5678)
	validToken     = "valid-token"
)

var errUnknownProject = coderr.NewCodeErrorDef(coderr.UnknownProject, "unknown project")

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Position() int {
	return m.Called().Int(0)
}

func (m *mockHistory) EntryIndex(entryID int64) (int, error) {
	args := m.Called(entryID)
	return args.Int(0), args.Error(1)
}

func (m *mockHistory) PrecedingEntryID(entryID int64) (int64, bool, error) {
	args := m.Called(entryID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *mockHistory) UndoRedo(_ context.Context, entryID int64) error {
	return m.Called(entryID).Error(0)
}

func (m *mockHistory) UndoAll(_ context.Context) error {
	return m.Called().Error(0)
}

type mockProcessManager struct {
	mock.Mock
}

func (m *mockProcessManager) GetProcess(processID int32) (process.Process, error) {
	args := m.Called(processID)
	p, _ := args.Get(0).(process.Process)
	return p, args.Error(1)
}

type mockProcess struct {
	mock.Mock
}

func (m *mockProcess) ID() int32 {
	return testProcessID
}

func (m *mockProcess) ChangeDataID() changedata.ID {
	return m.Called().Get(0).(changedata.ID)
}

func (m *mockProcess) State() process.State {
	return process.StateRunning
}

func (m *mockProcess) Cancel() {
	m.Called()
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(projectID int64) (*Project, error) {
	args := m.Called(projectID)
	p, _ := args.Get(0).(*Project)
	return p, args.Error(1)
}

type staticValidator string

func (v staticValidator) Validate(token string) bool {
	return token == string(v)
}

type fixture struct {
	history   *mockHistory
	processes *mockProcessManager
	process   *mockProcess
	resolver  *mockResolver
	commands  *Commands
}

func newFixture() *fixture {
	f := &fixture{
		history:   &mockHistory{},
		processes: &mockProcessManager{},
		process:   &mockProcess{},
		resolver:  &mockResolver{},
	}
	project := &Project{ID: testProjectID, History: f.history, Processes: f.processes, Lock: &sync.Mutex{}}
	f.resolver.On("Resolve", testProjectID).Return(project, nil).Maybe()
	f.process.On("ChangeDataID").Return(changedata.ID{HistoryEntryID: targetEntryID, Slot: "urls"}).Maybe()
	f.commands = New(zap.NewNop(), staticValidator(validToken), f.resolver)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.history.AssertExpectations(t)
	f.processes.AssertExpectations(t)
	f.process.AssertExpectations(t)
	f.resolver.AssertExpectations(t)
}

func cancelRequest(token string) CancelProcessRequest {
	return CancelProcessRequest{ProjectID: testProjectID, ProcessID: testProcessID, CSRFToken: token}
}

func TestCancelWithoutCSRFToken(t *testing.T) {
	re := require.New(t)
	f := newFixture()

	_, err := f.commands.CancelProcess(context.Background(), cancelRequest(""))
	re.True(coderr.Is(err, coderr.CSRFFailed))

	f.resolver.AssertNotCalled(t, "Resolve", mock.Anything)
	re.Empty(f.history.Calls)
	re.Empty(f.processes.Calls)
	re.Empty(f.process.Calls)
}

func TestCancelWithoutRewind(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", testProcessID).Return(f.process, nil).Once()
	f.history.On("EntryIndex", targetEntryID).Return(3, nil).Once()
	f.history.On("Position").Return(1).Once()
	f.process.On("Cancel").Return().Once()

	result, err := f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.NoError(err)
	re.Nil(result.NewHistoryEntryID)

	f.history.AssertNotCalled(t, "UndoRedo", mock.Anything)
	f.history.AssertNotCalled(t, "UndoAll")
	f.process.AssertNumberOfCalls(t, "Cancel", 1)
	f.assertExpectations(t)
}

func TestCancelWithRewind(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", testProcessID).Return(f.process, nil).Once()
	f.history.On("EntryIndex", targetEntryID).Return(3, nil).Once()
	f.history.On("Position").Return(5).Once()
	f.history.On("PrecedingEntryID", targetEntryID).Return(precedingEntry, true, nil).Once()
	f.history.On("UndoRedo", precedingEntry).Return(nil).Once()
	f.process.On("Cancel").Return().Once()

	result, err := f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.NoError(err)
	re.NotNil(result.NewHistoryEntryID)
	re.Equal(precedingEntry, *result.NewHistoryEntryID)

	body, err := json.Marshal(result)
	re.NoError(err)
	re.JSONEq(`{"newHistoryEntryId":5678}`, string(body))
	f.assertExpectations(t)
}

func TestCancelFirstEntryRewindsToStart(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", testProcessID).Return(f.process, nil).Once()
	f.history.On("EntryIndex", targetEntryID).Return(0, nil).Once()
	f.history.On("Position").Return(1).Once()
	f.history.On("PrecedingEntryID", targetEntryID).Return(int64(0), false, nil).Once()
	f.history.On("UndoAll").Return(nil).Once()
	f.process.On("Cancel").Return().Once()

	result, err := f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.NoError(err)
	re.NotNil(result.NewHistoryEntryID)
	re.Equal(int64(0), *result.NewHistoryEntryID)
	f.history.AssertNotCalled(t, "UndoRedo", mock.Anything)
	f.assertExpectations(t)
}

func TestCancelUnknownProcess(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", missingProcess).Return(nil, process.ErrProcessNotFound.WithMessagef("processID:%d", missingProcess)).Once()

	req := cancelRequest(validToken)
	req.ProcessID = missingProcess
	_, err := f.commands.CancelProcess(context.Background(), req)
	re.True(coderr.Is(err, coderr.ProcessNotFound))

	re.Empty(f.history.Calls)
	f.assertExpectations(t)
}

func TestCancelUnknownProject(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.resolver.On("Resolve", int64(42)).Return(nil, errUnknownProject.WithMessagef("projectID:%d", 42)).Once()

	req := cancelRequest(validToken)
	req.ProjectID = 42
	_, err := f.commands.CancelProcess(context.Background(), req)
	re.True(coderr.Is(err, coderr.UnknownProject))
	re.Empty(f.processes.Calls)
}

func TestCancelRewindFailureKeepsProcess(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", testProcessID).Return(f.process, nil).Once()
	f.history.On("EntryIndex", targetEntryID).Return(3, nil).Once()
	f.history.On("Position").Return(5).Once()
	f.history.On("PrecedingEntryID", targetEntryID).Return(precedingEntry, true, nil).Once()
	f.history.On("UndoRedo", precedingEntry).Return(history.ErrDoesNotApply.WithMessagef("entry:%d", precedingEntry)).Once()

	_, err := f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.Error(err)
	re.True(coderr.Is(err, coderr.DoesNotApply))

	f.process.AssertNotCalled(t, "Cancel")
	f.assertExpectations(t)
}

func TestCancelTwice(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.processes.On("GetProcess", testProcessID).Return(f.process, nil).Once()
	f.processes.On("GetProcess", testProcessID).Return(nil, process.ErrProcessNotFound.WithMessagef("processID:%d", testProcessID)).Once()
	f.history.On("EntryIndex", targetEntryID).Return(3, nil).Once()
	f.history.On("Position").Return(1).Once()
	f.process.On("Cancel").Return().Once()

	_, err := f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.NoError(err)
	_, err = f.commands.CancelProcess(context.Background(), cancelRequest(validToken))
	re.True(coderr.Is(err, coderr.ProcessNotFound))

	f.process.AssertNumberOfCalls(t, "Cancel", 1)
	f.assertExpectations(t)
}

func TestUndoRedo(t *testing.T) {
	re := require.New(t)
	f := newFixture()
	f.history.On("UndoRedo", precedingEntry).Return(nil).Once()
	f.history.On("UndoAll").Return(nil).Once()

	err := f.commands.UndoRedo(context.Background(), UndoRedoRequest{ProjectID: testProjectID, EntryID: precedingEntry})
	re.True(coderr.Is(err, coderr.CSRFFailed))

	re.NoError(f.commands.UndoRedo(context.Background(), UndoRedoRequest{ProjectID: testProjectID, EntryID: precedingEntry, CSRFToken: validToken}))
	re.NoError(f.commands.UndoRedo(context.Background(), UndoRedoRequest{ProjectID: testProjectID, CSRFToken: validToken}))
	f.assertExpectations(t)
}

type projectResolver map[int64]*Project

func (r projectResolver) Resolve(projectID int64) (*Project, error) {
	p, ok := r[projectID]
	if !ok {
		return nil, errUnknownProject.WithMessagef("projectID:%d", projectID)
	}
	return p, nil
}

func TestCancelAgainstLiveProject(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	initial, err := grid.New([]string{"a"}, [][]any{{"x"}, {"y"}})
	re.NoError(err)
	h := history.New(zap.NewNop(), initial, nil, nil)
	_, err = h.AddEntry(ctx, &history.Entry{ID: 10, Description: "rename a", Change: &change.ColumnRenameChange{OldName: "a", NewName: "b"}})
	re.NoError(err)
	_, err = h.AddEntry(ctx, &history.Entry{ID: targetEntryID, Description: "rename b", Change: &change.ColumnRenameChange{OldName: "b", NewName: "c"}})
	re.NoError(err)

	m := process.NewManager(zap.NewNop(), process.ManagerConfig{Workers: 1})
	re.NoError(m.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		re.NoError(m.Stop(stopCtx))
	}()

	started := make(chan struct{})
	p, err := m.Submit(ctx, changedata.ID{HistoryEntryID: targetEntryID, Slot: "urls"}, "fetch", process.TaskFunc(
		func(ctx context.Context, _ process.Reporter) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}))
	re.NoError(err)
	<-started

	resolver := projectResolver{testProjectID: {ID: testProjectID, History: h, Processes: m, Lock: &sync.Mutex{}}}
	commands := New(zap.NewNop(), staticValidator(validToken), resolver)
	req := CancelProcessRequest{ProjectID: testProjectID, ProcessID: p.ID(), CSRFToken: validToken}

	result, err := commands.CancelProcess(ctx, req)
	re.NoError(err)
	re.Equal(int64(10), *result.NewHistoryEntryID)
	re.Equal(1, h.Position())
	re.Equal(process.StateCancelled, p.State())

	g, _, err := h.CurrentGrid(ctx)
	re.NoError(err)
	re.Equal([]string{"b"}, g.ColumnNames())

	_, err = commands.CancelProcess(ctx, req)
	re.True(coderr.Is(err, coderr.ProcessNotFound))
	re.Equal(1, h.Position())
}

func TestRepeatedCancelDoesNotReachNewerProcess(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	initial, err := grid.New([]string{"a"}, [][]any{{"x"}})
	re.NoError(err)
	h := history.New(zap.NewNop(), initial, nil, nil)
	_, err = h.AddEntry(ctx, &history.Entry{ID: 10, Description: "rename a", Change: &change.ColumnRenameChange{OldName: "a", NewName: "b"}})
	re.NoError(err)
	_, err = h.AddEntry(ctx, &history.Entry{ID: 11, Description: "rename b", Change: &change.ColumnRenameChange{OldName: "b", NewName: "c"}})
	re.NoError(err)

	m := process.NewManager(zap.NewNop(), process.ManagerConfig{Workers: 2})
	re.NoError(m.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		re.NoError(m.Stop(stopCtx))
	}()

	waitForCancel := process.TaskFunc(func(ctx context.Context, _ process.Reporter) error {
		<-ctx.Done()
		return ctx.Err()
	})
	first, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 11, Slot: "urls"}, "fetch", waitForCancel)
	re.NoError(err)

	resolver := projectResolver{testProjectID: {ID: testProjectID, History: h, Processes: m, Lock: &sync.Mutex{}}}
	commands := New(zap.NewNop(), staticValidator(validToken), resolver)
	req := CancelProcessRequest{ProjectID: testProjectID, ProcessID: first.ID(), CSRFToken: validToken}

	result, err := commands.CancelProcess(ctx, req)
	re.NoError(err)
	re.Equal(int64(10), *result.NewHistoryEntryID)
	re.Equal(1, h.Position())

	second, err := m.Submit(ctx, changedata.ID{HistoryEntryID: 10, Slot: "urls"}, "fetch again", waitForCancel)
	re.NoError(err)
	re.NotEqual(first.ID(), second.ID())

	_, err = commands.CancelProcess(ctx, req)
	re.True(coderr.Is(err, coderr.ProcessNotFound))
	re.Equal(1, h.Position())
	re.NotEqual(process.StateCancelled, second.State())
}
