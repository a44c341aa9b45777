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

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/etcdutil"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	defaultRootPath       = "/refine"
	defaultRequestTimeout = time.Second * 30
)

func newTestStorage(t *testing.T) Storage {
	_, client, closeSrv := etcdutil.PrepareEtcdServerAndClient(t)
	t.Cleanup(closeSrv)
	return NewEtcdStorageImpl(zap.NewNop(), client, defaultRootPath, Options{ScanBatchSize: 2})
}

func TestProjects(t *testing.T) {
	re := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	s := newTestStorage(t)
	initial, err := grid.New([]string{"a"}, [][]any{{"x"}, {"y"}})
	re.NoError(err)

	now := time.Now().UTC().Truncate(time.Second)
	for _, id := range []int64{1234, 1, 42} {
		re.NoError(s.CreateProject(ctx, ProjectMeta{ID: id, Name: "p", Created: now, Modified: now}, initial))
	}
	err = s.CreateProject(ctx, ProjectMeta{ID: 1234}, initial)
	re.True(coderr.Is(err, coderr.Conflict))

	metas, err := s.ListProjects(ctx)
	re.NoError(err)
	re.Len(metas, 3)
	re.Equal(int64(1), metas[0].ID)
	re.Equal(int64(42), metas[1].ID)
	re.Equal(int64(1234), metas[2].ID)

	record, err := s.LoadProject(ctx, 1234)
	re.NoError(err)
	re.True(now.Equal(record.Meta.Created))
	re.Equal(initial.ColumnNames(), record.Initial.ColumnNames())
	re.Equal(2, record.Initial.RowCount())
	re.Empty(record.Entries)
	re.Equal(0, record.Position)

	re.NoError(s.DeleteProject(ctx, 1234))
	_, err = s.LoadProject(ctx, 1234)
	re.True(coderr.Is(err, coderr.UnknownProject))
	metas, err = s.ListProjects(ctx)
	re.NoError(err)
	re.Len(metas, 2)
}

func TestJournal(t *testing.T) {
	re := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	s := newTestStorage(t)
	initial, err := grid.New([]string{"a"}, [][]any{{"x"}})
	re.NoError(err)
	re.NoError(s.CreateProject(ctx, ProjectMeta{ID: 7}, initial))

	journal := s.Journal(7)
	entries := []*history.Entry{
		{ID: 10, Description: "rename", Change: &change.ColumnRenameChange{OldName: "a", NewName: "b"}},
		{ID: 20, ParentID: 10, Description: "add", Change: &change.ColumnAdditionChange{ColumnName: "c", Slot: "transform"}},
		{ID: 30, ParentID: 20, Description: "remove", Change: change.NewRowRemovalChange([]int{0})},
	}
	for i, e := range entries {
		re.NoError(journal.PutEntry(ctx, i, e))
	}
	re.NoError(journal.PutPosition(ctx, 3))

	record, err := s.LoadProject(ctx, 7)
	re.NoError(err)
	re.Equal(3, record.Position)
	re.Len(record.Entries, 3)
	re.Equal(int64(20), record.Entries[1].ID)
	re.Equal(int64(10), record.Entries[1].ParentID)
	re.Equal(&change.ColumnAdditionChange{ColumnName: "c", Slot: "transform"}, record.Entries[1].Change)

	// Writing an entry in the middle drops the entries after it.
	re.NoError(journal.PutEntry(ctx, 1, &history.Entry{ID: 40, ParentID: 10, Change: &change.ColumnRenameChange{OldName: "b", NewName: "c"}}))
	re.NoError(journal.PutPosition(ctx, 2))

	record, err = s.LoadProject(ctx, 7)
	re.NoError(err)
	re.Equal(2, record.Position)
	re.Len(record.Entries, 2)
	re.Equal(int64(40), record.Entries[1].ID)

	// The persisted history can be restored.
	h, err := history.Restore(zap.NewNop(), record.Initial, nil, journal, record.Entries, record.Position)
	re.NoError(err)
	current, _, err := h.CurrentGrid(ctx)
	re.NoError(err)
	re.Equal([]string{"c"}, current.ColumnNames())
}
