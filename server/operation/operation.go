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

	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
	"github.com/openrefine/refine-core/server/process"
)

// Sink receives the change data computed by a long running operation. Every write replaces the
// previous one.
type Sink interface {
	Write(ctx context.Context, data changedata.Data, complete bool) error
}

// ComputeFunc computes the change data of a plan.
type ComputeFunc func(ctx context.Context, reporter process.Reporter, sink Sink) error

// Plan is what an operation produces for a new history entry.
type Plan struct {
	Change history.Change
	// Slot and Compute are only set by long running operations.
	Slot    string
	Compute ComputeFunc
}

func (p *Plan) IsLongRunning() bool {
	return p.Compute != nil
}

// Operation turns a request into the change of a new history entry, computed against the grid the
// entry will be applied on.
type Operation interface {
	Name() string
	Description() string
	Plan(g *grid.Grid) (*Plan, error)
}
