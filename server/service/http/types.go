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

package http

import (
	"net/http"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/command"
	"github.com/openrefine/refine-core/server/config"
	"github.com/openrefine/refine-core/server/csrf"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/limiter"
	"github.com/openrefine/refine-core/server/process"
	"github.com/openrefine/refine-core/server/project"
	"github.com/openrefine/refine-core/server/status"
	"github.com/openrefine/refine-core/server/storage"
)

const (
	codeOK    string = "ok"
	codeError string = "error"

	commandPrefix string = "/command/core"
	adminPrefix   string = "/api/v1"

	projectParam   string = "project"
	processIDParam string = "id"
	csrfTokenParam string = "csrf_token"

	defaultRowLimit = 50
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiFuncResult struct {
	data any
	err  coderr.CodeError
}

func okResult(data any) apiFuncResult {
	return apiFuncResult{
		data: data,
		err:  nil,
	}
}

func errResult(err error) apiFuncResult {
	return apiFuncResult{
		data: nil,
		err:  toCodeError(err),
	}
}

type apiFunc func(r *http.Request) apiFuncResult

// OperationDefaults fill the settings a client left out of an operation.
type OperationDefaults struct {
	FlushEveryRows int
	FetchDelayMs   int
	FetchTimeoutMs int
}

type API struct {
	projects     *project.Manager
	commands     *command.Commands
	tokens       *csrf.TokenFactory
	serverStatus *status.ServerStatus
	flowLimiter  *limiter.FlowLimiter
	defaults     OperationDefaults
}

type CSRFTokenResult struct {
	Token string `json:"token"`
}

type CreateProjectResult struct {
	ProjectID int64 `json:"projectID"`
}

type ProjectsResult struct {
	Projects []storage.ProjectMeta `json:"projects"`
}

type ProcessesResult struct {
	Processes  []process.Info      `json:"processes"`
	Exceptions []process.ErrorInfo `json:"exceptions"`
}

type UndoRedoResult struct {
	Position int `json:"position"`
}

type IndexedRow struct {
	Index int      `json:"i"`
	Cells grid.Row `json:"cells"`
}

type RowsResult struct {
	Columns  []grid.Column `json:"columns"`
	Rows     []IndexedRow  `json:"rows"`
	Start    int           `json:"start"`
	Limit    int           `json:"limit"`
	Total    int           `json:"total"`
	Complete bool          `json:"complete"`
}

type UpdateFlowLimiterRequest = config.LimiterConfig
