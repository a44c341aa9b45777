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

package operation

import (
	"fmt"

	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/grid"
)

const (
	NameRenameColumn = "core/column-rename"
	NameRemoveRows   = "core/row-removal"
)

type RenameColumn struct {
	OldColumnName string `json:"oldColumnName"`
	NewColumnName string `json:"newColumnName"`
}

func (o *RenameColumn) Name() string {
	return NameRenameColumn
}

func (o *RenameColumn) Description() string {
	return fmt.Sprintf("Rename column %s to %s", o.OldColumnName, o.NewColumnName)
}

func (o *RenameColumn) Plan(g *grid.Grid) (*Plan, error) {
	if _, ok := g.ColumnIndex(o.OldColumnName); !ok {
		return nil, ErrInvalidOperation.WithMessagef("column not found, column:%s", o.OldColumnName)
	}
	if len(o.NewColumnName) == 0 {
		return nil, ErrInvalidOperation.WithMessagef("new column name is empty")
	}
	return &Plan{Change: &change.ColumnRenameChange{OldName: o.OldColumnName, NewName: o.NewColumnName}}, nil
}

type RemoveRows struct {
	RowIndices []int `json:"rowIndices"`
}

func (o *RemoveRows) Name() string {
	return NameRemoveRows
}

func (o *RemoveRows) Description() string {
	return fmt.Sprintf("Remove %d rows", len(grid.SortedUnique(o.RowIndices)))
}

func (o *RemoveRows) Plan(g *grid.Grid) (*Plan, error) {
	if len(o.RowIndices) == 0 {
		return nil, ErrInvalidOperation.WithMessagef("no rows to remove")
	}
	for _, i := range o.RowIndices {
		if i < 0 || i >= g.RowCount() {
			return nil, ErrInvalidOperation.WithMessagef("row index out of range, index:%d, rows:%d", i, g.RowCount())
		}
	}
	return &Plan{Change: change.NewRowRemovalChange(o.RowIndices)}, nil
}
