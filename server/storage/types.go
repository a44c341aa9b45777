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
	"time"

	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
)

type ProjectMeta struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// ProjectRecord is everything needed to rebuild a project.
type ProjectRecord struct {
	Meta     ProjectMeta
	Initial  *grid.Grid
	Entries  []*history.Entry
	Position int
}

// Storage persists projects and their histories. Change data and processes are not persisted here.
type Storage interface {
	CreateProject(ctx context.Context, meta ProjectMeta, initial *grid.Grid) error
	ListProjects(ctx context.Context) ([]ProjectMeta, error)
	LoadProject(ctx context.Context, projectID int64) (*ProjectRecord, error)
	DeleteProject(ctx context.Context, projectID int64) error
	// Journal returns the journal recording the history of the project.
	Journal(projectID int64) history.Journal
}
