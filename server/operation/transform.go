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
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/process"
	"github.com/pkg/errors"
)

const (
	NameAddColumnByTransform = "core/column-addition"
	transformSlot            = "transform"
	DefaultFlushEvery        = 100
)

var transforms = map[string]func(s string) any{
	"trim":      func(s string) any { return strings.TrimSpace(s) },
	"lowercase": func(s string) any { return strings.ToLower(s) },
	"uppercase": func(s string) any { return strings.ToUpper(s) },
	"length":    func(s string) any { return utf8.RuneCountInString(s) },
}

// AddColumnByTransform adds a column computed from another one.
type AddColumnByTransform struct {
	BaseColumnName string `json:"baseColumnName"`
	NewColumnName  string `json:"newColumnName"`
	Expression     string `json:"expression"`
	// FlushEvery is the number of rows computed between two writes of the change data.
	FlushEvery int `json:"flushEvery,omitempty"`
}

func (o *AddColumnByTransform) Name() string {
	return NameAddColumnByTransform
}

func (o *AddColumnByTransform) Description() string {
	return fmt.Sprintf("Create column %s based on column %s using expression %s", o.NewColumnName, o.BaseColumnName, o.Expression)
}

func (o *AddColumnByTransform) Plan(g *grid.Grid) (*Plan, error) {
	fn, ok := transforms[o.Expression]
	if !ok {
		return nil, ErrUnknownTransform.WithMessagef("expression:%s", o.Expression)
	}
	baseIndex, err := checkColumns(g, o.BaseColumnName, o.NewColumnName)
	if err != nil {
		return nil, err
	}
	flushEvery := o.FlushEvery
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	values := columnValues(g, baseIndex)
	compute := func(ctx context.Context, reporter process.Reporter, sink Sink) error {
		data := make(changedata.Data, len(values))
		for i, v := range values {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				data[i] = fn(s)
			} else if v != nil {
				data[i] = fn(fmt.Sprint(v))
			}

			if (i+1)%flushEvery == 0 && i+1 < len(values) {
				if err := sink.Write(ctx, data.Clone(), false); err != nil {
					return errors.WithMessagef(err, "flush at row:%d", i)
				}
				reporter.SetProgress((i + 1) * 100 / len(values))
			}
		}
		return sink.Write(ctx, data, true)
	}

	return &Plan{
		Change:  &change.ColumnAdditionChange{ColumnName: o.NewColumnName, Slot: transformSlot},
		Slot:    transformSlot,
		Compute: compute,
	}, nil
}

func checkColumns(g *grid.Grid, baseColumn, newColumn string) (int, error) {
	baseIndex, ok := g.ColumnIndex(baseColumn)
	if !ok {
		return -1, ErrInvalidOperation.WithMessagef("base column not found, column:%s", baseColumn)
	}
	if len(newColumn) == 0 {
		return -1, ErrInvalidOperation.WithMessagef("new column name is empty")
	}
	if _, exists := g.ColumnIndex(newColumn); exists {
		return -1, ErrInvalidOperation.WithMessagef("column already exists, column:%s", newColumn)
	}
	return baseIndex, nil
}

// columnValues snapshots a column so that the computation does not depend on the grid.
func columnValues(g *grid.Grid, columnIndex int) []any {
	values := make([]any, 0, g.RowCount())
	for i := 0; i < g.RowCount(); i++ {
		row, _ := g.Row(i)
		values = append(values, row[columnIndex].Value)
	}
	return values
}
