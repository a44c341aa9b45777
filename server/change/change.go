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

package change

import (
	"context"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
)

const (
	KindColumnAddition = "core/column-addition"
	KindColumnRename   = "core/column-rename"
	KindRowRemoval     = "core/row-removal"
)

// ColumnAdditionChange appends a column whose values are read from a change data slot of its own
// history entry. Rows without a computed value yet are pending.
type ColumnAdditionChange struct {
	ColumnName string `json:"columnName"`
	Slot       string `json:"slot"`
}

func (c *ColumnAdditionChange) Kind() string {
	return KindColumnAddition
}

func (c *ColumnAdditionChange) Apply(ctx context.Context, g *grid.Grid, cc history.ChangeContext) (*grid.Grid, bool, error) {
	id := changedata.ID{HistoryEntryID: cc.EntryID, Slot: c.Slot}

	var (
		data     changedata.Data
		complete bool
	)
	if cc.Loader != nil {
		var err error
		data, complete, err = cc.Loader.Retrieve(ctx, id)
		if err != nil && !coderr.Is(err, coderr.NotFound) {
			return nil, false, ErrLoadData.WithCausef(err, "id:%s", id)
		}
	}

	next, err := g.WithColumn(c.ColumnName, func(rowIndex int, _ grid.Row) grid.Cell {
		if v, ok := data[rowIndex]; ok {
			return grid.ValueCell(v)
		}
		if complete {
			return grid.ValueCell(nil)
		}
		return grid.PendingCell()
	})
	if err != nil {
		return nil, false, err
	}
	return next, complete, nil
}

type ColumnRenameChange struct {
	OldName string `json:"oldColumnName"`
	NewName string `json:"newColumnName"`
}

func (c *ColumnRenameChange) Kind() string {
	return KindColumnRename
}

func (c *ColumnRenameChange) Apply(_ context.Context, g *grid.Grid, _ history.ChangeContext) (*grid.Grid, bool, error) {
	next, err := g.WithRenamedColumn(c.OldName, c.NewName)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

// RowRemovalChange removes rows by their index in the grid it is applied to.
type RowRemovalChange struct {
	RowIndices []int `json:"rowIndices"`
}

func NewRowRemovalChange(rowIndices []int) *RowRemovalChange {
	return &RowRemovalChange{RowIndices: grid.SortedUnique(rowIndices)}
}

func (c *RowRemovalChange) Kind() string {
	return KindRowRemoval
}

func (c *RowRemovalChange) Apply(_ context.Context, g *grid.Grid, _ history.ChangeContext) (*grid.Grid, bool, error) {
	next, err := g.WithoutRows(c.RowIndices)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}
