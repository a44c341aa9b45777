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

package grid

import (
	"encoding/json"
	"sort"
)

// Cell is a single value of the grid. A pending cell has no value yet because the change data
// that will provide it is still being computed.
type Cell struct {
	Value   any  `json:"v,omitempty"`
	Pending bool `json:"p,omitempty"`
}

func ValueCell(v any) Cell {
	return Cell{Value: v, Pending: false}
}

func PendingCell() Cell {
	return Cell{Value: nil, Pending: true}
}

type Row []Cell

type Column struct {
	Name string `json:"name"`
}

// Grid is an immutable table. All the mutating methods return a new Grid and share the unchanged
// parts with the receiver.
type Grid struct {
	columns []Column
	rows    []Row
}

// New builds a grid from raw values, every row must have exactly one value per column.
func New(columnNames []string, values [][]any) (*Grid, error) {
	seen := make(map[string]struct{}, len(columnNames))
	columns := make([]Column, 0, len(columnNames))
	for _, name := range columnNames {
		if len(name) == 0 {
			return nil, ErrInvalidGrid.WithMessagef("empty column name")
		}
		if _, ok := seen[name]; ok {
			return nil, ErrColumnExists.WithMessagef("column:%s", name)
		}
		seen[name] = struct{}{}
		columns = append(columns, Column{Name: name})
	}

	rows := make([]Row, 0, len(values))
	for i, rowValues := range values {
		if len(rowValues) != len(columns) {
			return nil, ErrInvalidGrid.WithMessagef("row %d has %d cells, expect:%d", i, len(rowValues), len(columns))
		}
		row := make(Row, 0, len(rowValues))
		for _, v := range rowValues {
			row = append(row, ValueCell(v))
		}
		rows = append(rows, row)
	}

	return &Grid{columns: columns, rows: rows}, nil
}

func Empty() *Grid {
	return &Grid{columns: nil, rows: nil}
}

func (g *Grid) Columns() []Column {
	columns := make([]Column, len(g.columns))
	copy(columns, g.columns)
	return columns
}

func (g *Grid) ColumnNames() []string {
	names := make([]string, 0, len(g.columns))
	for _, c := range g.columns {
		names = append(names, c.Name)
	}
	return names
}

func (g *Grid) ColumnCount() int {
	return len(g.columns)
}

func (g *Grid) RowCount() int {
	return len(g.rows)
}

func (g *Grid) ColumnIndex(name string) (int, bool) {
	for i, c := range g.columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Row returns the row at index i. The returned row must not be modified.
func (g *Grid) Row(i int) (Row, error) {
	if i < 0 || i >= len(g.rows) {
		return nil, ErrRowOutOfRange.WithMessagef("index:%d, rows:%d", i, len(g.rows))
	}
	return g.rows[i], nil
}

// PendingCells counts the cells waiting for change data.
func (g *Grid) PendingCells() int {
	n := 0
	for _, row := range g.rows {
		for _, c := range row {
			if c.Pending {
				n++
			}
		}
	}
	return n
}

// WithColumn appends a column whose cells are produced by cellOf.
func (g *Grid) WithColumn(name string, cellOf func(rowIndex int, row Row) Cell) (*Grid, error) {
	if len(name) == 0 {
		return nil, ErrInvalidGrid.WithMessagef("empty column name")
	}
	if _, ok := g.ColumnIndex(name); ok {
		return nil, ErrColumnExists.WithMessagef("column:%s", name)
	}

	columns := make([]Column, 0, len(g.columns)+1)
	columns = append(columns, g.columns...)
	columns = append(columns, Column{Name: name})

	rows := make([]Row, 0, len(g.rows))
	for i, row := range g.rows {
		newRow := make(Row, 0, len(row)+1)
		newRow = append(newRow, row...)
		newRow = append(newRow, cellOf(i, row))
		rows = append(rows, newRow)
	}

	return &Grid{columns: columns, rows: rows}, nil
}

func (g *Grid) WithRenamedColumn(oldName, newName string) (*Grid, error) {
	idx, ok := g.ColumnIndex(oldName)
	if !ok {
		return nil, ErrColumnNotFound.WithMessagef("column:%s", oldName)
	}
	if len(newName) == 0 {
		return nil, ErrInvalidGrid.WithMessagef("empty column name")
	}
	if oldName == newName {
		return g, nil
	}
	if _, exists := g.ColumnIndex(newName); exists {
		return nil, ErrColumnExists.WithMessagef("column:%s", newName)
	}

	columns := g.Columns()
	columns[idx] = Column{Name: newName}
	return &Grid{columns: columns, rows: g.rows}, nil
}

// WithoutRows removes the rows at the given indices. Duplicated indices are ignored.
func (g *Grid) WithoutRows(indices []int) (*Grid, error) {
	removed := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(g.rows) {
			return nil, ErrRowOutOfRange.WithMessagef("index:%d, rows:%d", i, len(g.rows))
		}
		removed[i] = struct{}{}
	}

	rows := make([]Row, 0, len(g.rows)-len(removed))
	for i, row := range g.rows {
		if _, ok := removed[i]; ok {
			continue
		}
		rows = append(rows, row)
	}
	return &Grid{columns: g.columns, rows: rows}, nil
}

// Slice returns at most limit rows starting from start, together with the row indices.
func (g *Grid) Slice(start, limit int) ([]int, []Row) {
	if start < 0 {
		start = 0
	}
	if start >= len(g.rows) || limit <= 0 {
		return nil, nil
	}
	end := start + limit
	if end > len(g.rows) {
		end = len(g.rows)
	}

	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return indices, g.rows[start:end]
}

// SortedUnique is a helper for callers that build row index sets.
func SortedUnique(indices []int) []int {
	out := make([]int, len(indices))
	copy(out, indices)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

type gridJSON struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func (g *Grid) MarshalJSON() ([]byte, error) {
	rows := g.rows
	if rows == nil {
		rows = []Row{}
	}
	columns := g.columns
	if columns == nil {
		columns = []Column{}
	}
	return json.Marshal(gridJSON{Columns: columns, Rows: rows})
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var decoded gridJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ErrInvalidGrid.WithCause(err)
	}
	for i, row := range decoded.Rows {
		if len(row) != len(decoded.Columns) {
			return ErrInvalidGrid.WithMessagef("row %d has %d cells, expect:%d", i, len(row), len(decoded.Columns))
		}
	}
	g.columns = decoded.Columns
	g.rows = decoded.Rows
	return nil
}
