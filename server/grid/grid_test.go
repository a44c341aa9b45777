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
	"strings"
	"testing"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/stretchr/testify/require"
)

func newTestGrid(t *testing.T) *Grid {
	g, err := New([]string{"name", "city"}, [][]any{
		{" Alice ", "Paris"},
		{"Bob", "Berlin"},
		{"Carol", "Rome"},
	})
	require.NoError(t, err)
	return g
}

func TestNewGrid(t *testing.T) {
	re := require.New(t)

	g := newTestGrid(t)
	re.Equal(3, g.RowCount())
	re.Equal(2, g.ColumnCount())
	re.Equal([]string{"name", "city"}, g.ColumnNames())

	idx, ok := g.ColumnIndex("city")
	re.True(ok)
	re.Equal(1, idx)
	_, ok = g.ColumnIndex("country")
	re.False(ok)

	_, err := New([]string{"a", "a"}, nil)
	re.True(coderr.Is(err, coderr.BadRequest))
	_, err = New([]string{"a", "b"}, [][]any{{"x"}})
	re.Error(err)
}

func TestWithColumnKeepsReceiver(t *testing.T) {
	re := require.New(t)

	g := newTestGrid(t)
	withLen, err := g.WithColumn("len", func(_ int, row Row) Cell {
		return ValueCell(len(row[0].Value.(string)))
	})
	re.NoError(err)
	re.Equal(3, withLen.ColumnCount())
	re.Equal(2, g.ColumnCount())

	row, err := withLen.Row(1)
	re.NoError(err)
	re.Equal(3, row[2].Value)

	_, err = g.WithColumn("city", func(int, Row) Cell { return PendingCell() })
	re.Error(err)

	pending, err := g.WithColumn("p", func(int, Row) Cell { return PendingCell() })
	re.NoError(err)
	re.Equal(3, pending.PendingCells())
	re.Equal(0, g.PendingCells())
}

func TestRenameAndRemove(t *testing.T) {
	re := require.New(t)

	g := newTestGrid(t)
	renamed, err := g.WithRenamedColumn("city", "town")
	re.NoError(err)
	re.Equal([]string{"name", "town"}, renamed.ColumnNames())
	re.Equal([]string{"name", "city"}, g.ColumnNames())

	_, err = g.WithRenamedColumn("country", "x")
	re.True(coderr.Is(err, coderr.BadRequest))
	_, err = g.WithRenamedColumn("city", "name")
	re.Error(err)

	removed, err := g.WithoutRows([]int{0, 2, 2})
	re.NoError(err)
	re.Equal(1, removed.RowCount())
	row, err := removed.Row(0)
	re.NoError(err)
	re.Equal("Bob", row[0].Value)

	_, err = g.WithoutRows([]int{3})
	re.Error(err)
	_, err = g.Row(-1)
	re.Error(err)
}

func TestSlice(t *testing.T) {
	re := require.New(t)

	g := newTestGrid(t)
	indices, rows := g.Slice(1, 10)
	re.Equal([]int{1, 2}, indices)
	re.Len(rows, 2)

	indices, rows = g.Slice(5, 10)
	re.Nil(indices)
	re.Nil(rows)

	re.Equal([]int{1, 3, 7}, SortedUnique([]int{7, 3, 1, 3}))
}

func TestGridJSON(t *testing.T) {
	re := require.New(t)

	g, err := newTestGrid(t).WithColumn("p", func(int, Row) Cell { return PendingCell() })
	re.NoError(err)

	data, err := json.Marshal(g)
	re.NoError(err)
	re.True(strings.HasPrefix(string(data), `{"columns":[{"name":"name"},{"name":"city"},{"name":"p"}],"rows":[[{"v":" Alice "},{"v":"Paris"},{"p":true}]`))

	var decoded Grid
	re.NoError(json.Unmarshal(data, &decoded))
	re.Equal(g.ColumnNames(), decoded.ColumnNames())
	re.Equal(3, decoded.PendingCells())

	re.Error(json.Unmarshal([]byte(`{"columns":[{"name":"a"}],"rows":[[]]}`), &decoded))

	data, err = json.Marshal(Empty())
	re.NoError(err)
	re.Equal(`{"columns":[],"rows":[]}`, string(data))
}
