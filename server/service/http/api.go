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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/pkg/log"
	"github.com/openrefine/refine-core/server/command"
	"github.com/openrefine/refine-core/server/csrf"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/limiter"
	"github.com/openrefine/refine-core/server/operation"
	"github.com/openrefine/refine-core/server/process"
	"github.com/openrefine/refine-core/server/project"
	"github.com/openrefine/refine-core/server/status"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewAPI(projects *project.Manager, commands *command.Commands, tokens *csrf.TokenFactory, serverStatus *status.ServerStatus,
	flowLimiter *limiter.FlowLimiter, defaults OperationDefaults,
) *API {
	return &API{
		projects:     projects,
		commands:     commands,
		tokens:       tokens,
		serverStatus: serverStatus,
		flowLimiter:  flowLimiter,
		defaults:     defaults,
	}
}

func (a *API) NewAPIRouter() *Router {
	root := New().WithInstrumentation(printRequestInsmt)

	// Register project commands.
	router := root.WithPrefix(commandPrefix)
	router.GetAndPost("/get-csrf-token", a.wrap(a.getCSRFToken, false))
	router.Post("/cancel-process", a.wrap(a.cancelProcess, true))
	router.GetAndPost("/get-processes", a.wrap(a.getProcesses, true))
	router.Post("/clear-process-errors", a.wrap(a.clearProcessErrors, true))
	router.GetAndPost("/get-history", a.wrap(a.getHistory, true))
	router.Post("/undo-redo", a.wrap(a.undoRedo, true))
	router.Post("/create-project", a.wrap(a.createProject, true))
	router.GetAndPost("/get-all-project-metadata", a.wrap(a.listProjects, true))
	router.Post("/delete-project", a.wrap(a.deleteProject, true))
	router.GetAndPost("/get-rows", a.wrap(a.getRows, true))
	router.Post("/apply-operation", a.wrap(a.applyOperation, true))

	// Register admin API.
	admin := root.WithPrefix(adminPrefix)
	admin.Get("/health", a.wrap(a.health, false))
	admin.Get("/flowLimiter", a.wrap(a.getFlowLimiter, false))
	admin.Put("/flowLimiter", a.wrap(a.updateFlowLimiter, false))

	// Register metrics and debug API.
	root.HandleWithoutPrefix(http.MethodGet, "/metrics", promhttp.Handler())
	root.HandleWithoutPrefix(http.MethodGet, "/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	root.HandleWithoutPrefix(http.MethodGet, "/debug/pprof/symbol", http.HandlerFunc(pprof.Symbol))
	root.HandleWithoutPrefix(http.MethodGet, "/debug/pprof/trace", http.HandlerFunc(pprof.Trace))
	for _, name := range []string{"heap", "allocs", "block", "goroutine", "mutex", "threadcreate"} {
		root.HandleWithoutPrefix(http.MethodGet, "/debug/pprof/"+name, pprof.Handler(name))
	}

	return root
}

func (a *API) getCSRFToken(_ *http.Request) apiFuncResult {
	return okResult(CSRFTokenResult{Token: a.tokens.FreshToken()})
}

func (a *API) cancelProcess(req *http.Request) apiFuncResult {
	token := req.FormValue(csrfTokenParam)
	if err := csrf.Check(a.tokens, token); err != nil {
		return errResult(err)
	}
	projectID, err := parseInt64Param(req, projectParam)
	if err != nil {
		return errResult(err)
	}
	processID, err := parseInt32Param(req, processIDParam)
	if err != nil {
		return errResult(err)
	}

	result, err := a.commands.CancelProcess(req.Context(), command.CancelProcessRequest{
		ProjectID: projectID,
		ProcessID: processID,
		CSRFToken: token,
	})
	if err != nil {
		return failure("cancel process", err)
	}
	return okResult(result)
}

func (a *API) getProcesses(req *http.Request) apiFuncResult {
	p, errRes := a.project(req)
	if errRes != nil {
		return *errRes
	}

	result := ProcessesResult{
		Processes:  p.Processes().List(),
		Exceptions: p.Processes().LatestErrors(),
	}
	if result.Processes == nil {
		result.Processes = []process.Info{}
	}
	if result.Exceptions == nil {
		result.Exceptions = []process.ErrorInfo{}
	}
	return okResult(result)
}

func (a *API) clearProcessErrors(req *http.Request) apiFuncResult {
	if errRes := a.checkCSRF(req); errRes != nil {
		return *errRes
	}
	p, errRes := a.project(req)
	if errRes != nil {
		return *errRes
	}

	p.Processes().ClearErrors()
	return okResult(nil)
}

func (a *API) getHistory(req *http.Request) apiFuncResult {
	p, errRes := a.project(req)
	if errRes != nil {
		return *errRes
	}
	return okResult(p.History().Entries())
}

func (a *API) undoRedo(req *http.Request) apiFuncResult {
	token := req.FormValue(csrfTokenParam)
	if err := csrf.Check(a.tokens, token); err != nil {
		return errResult(err)
	}
	projectID, err := parseInt64Param(req, projectParam)
	if err != nil {
		return errResult(err)
	}
	entryID, err := parseInt64Param(req, "lastDoneID")
	if err != nil {
		return errResult(err)
	}

	if err := a.commands.UndoRedo(req.Context(), command.UndoRedoRequest{
		ProjectID: projectID,
		EntryID:   entryID,
		CSRFToken: token,
	}); err != nil {
		return failure("undo redo", err)
	}

	p, err := a.projects.Get(projectID)
	if err != nil {
		return failure("get project", err)
	}
	return okResult(UndoRedoResult{Position: p.History().Position()})
}

func (a *API) createProject(req *http.Request) apiFuncResult {
	if errRes := a.checkCSRF(req); errRes != nil {
		return *errRes
	}

	initial := grid.Empty()
	if raw := req.FormValue("grid"); len(raw) > 0 {
		initial = &grid.Grid{}
		if err := json.Unmarshal([]byte(raw), initial); err != nil {
			return errResult(ErrParseRequest.WithCausef(err, "param:grid"))
		}
	}

	p, err := a.projects.Create(req.Context(), req.FormValue("project-name"), initial)
	if err != nil {
		return failure("create project", err)
	}
	return okResult(CreateProjectResult{ProjectID: p.ID()})
}

func (a *API) listProjects(_ *http.Request) apiFuncResult {
	return okResult(ProjectsResult{Projects: a.projects.List()})
}

func (a *API) deleteProject(req *http.Request) apiFuncResult {
	if errRes := a.checkCSRF(req); errRes != nil {
		return *errRes
	}
	projectID, err := parseInt64Param(req, projectParam)
	if err != nil {
		return errResult(err)
	}

	if err := a.projects.Delete(req.Context(), projectID); err != nil {
		return failure("delete project", err)
	}
	return okResult(nil)
}

func (a *API) getRows(req *http.Request) apiFuncResult {
	p, errRes := a.project(req)
	if errRes != nil {
		return *errRes
	}
	start, err := parseIntParam(req, "start", 0)
	if err != nil {
		return errResult(err)
	}
	limit, err := parseIntParam(req, "limit", defaultRowLimit)
	if err != nil {
		return errResult(err)
	}

	g, complete, err := p.History().CurrentGrid(req.Context())
	if err != nil {
		return failure("compute current grid", err)
	}
	indices, rows := g.Slice(start, limit)
	result := RowsResult{
		Columns:  g.Columns(),
		Rows:     make([]IndexedRow, 0, len(rows)),
		Start:    start,
		Limit:    limit,
		Total:    g.RowCount(),
		Complete: complete,
	}
	for i, row := range rows {
		result.Rows = append(result.Rows, IndexedRow{Index: indices[i], Cells: row})
	}
	return okResult(result)
}

func (a *API) applyOperation(req *http.Request) apiFuncResult {
	if errRes := a.checkCSRF(req); errRes != nil {
		return *errRes
	}
	p, errRes := a.project(req)
	if errRes != nil {
		return *errRes
	}

	op, err := operation.Decode([]byte(req.FormValue("operation")))
	if err != nil {
		return failure("decode operation", err)
	}
	a.applyDefaults(op)
	log.Info("apply operation", zap.Int64("projectID", p.ID()), zap.String("op", op.Name()))

	result, err := p.ApplyOperation(req.Context(), op)
	if err != nil {
		return failure("apply operation", err)
	}
	return okResult(result)
}

func (a *API) applyDefaults(op operation.Operation) {
	switch o := op.(type) {
	case *operation.AddColumnByTransform:
		if o.FlushEvery <= 0 {
			o.FlushEvery = a.defaults.FlushEveryRows
		}
	case *operation.AddColumnByFetchingURLs:
		if o.DelayMs == 0 {
			o.DelayMs = a.defaults.FetchDelayMs
		}
		if o.TimeoutMs == 0 {
			o.TimeoutMs = a.defaults.FetchTimeoutMs
		}
	}
}

func (a *API) health(_ *http.Request) apiFuncResult {
	isServerHealthy := a.serverStatus.IsHealthy()
	if isServerHealthy {
		return okResult(nil)
	}
	return errResult(ErrHealthCheck.WithMessagef("server health check failed, status is %v", a.serverStatus.Get()))
}

func (a *API) getFlowLimiter(_ *http.Request) apiFuncResult {
	return okResult(a.flowLimiter.GetConfig())
}

func (a *API) updateFlowLimiter(req *http.Request) apiFuncResult {
	var updateFlowLimiterRequest UpdateFlowLimiterRequest
	err := json.NewDecoder(req.Body).Decode(&updateFlowLimiterRequest)
	if err != nil {
		return errResult(ErrParseRequest.WithCause(err))
	}
	log.Info("update flow limiter request", zap.String("request", fmt.Sprintf("%+v", updateFlowLimiterRequest)))

	if err := a.flowLimiter.UpdateLimiter(updateFlowLimiterRequest); err != nil {
		log.Error("update flow limiter failed", zap.Error(err))
		return errResult(ErrUpdateFlowLimiter.WithCause(err))
	}
	return okResult(a.flowLimiter.GetConfig())
}

func (a *API) checkCSRF(req *http.Request) *apiFuncResult {
	if err := csrf.Check(a.tokens, req.FormValue(csrfTokenParam)); err != nil {
		res := errResult(err)
		return &res
	}
	return nil
}

func (a *API) project(req *http.Request) (*project.Project, *apiFuncResult) {
	projectID, err := parseInt64Param(req, projectParam)
	if err != nil {
		res := errResult(err)
		return nil, &res
	}
	p, err := a.projects.Get(projectID)
	if err != nil {
		res := errResult(err)
		return nil, &res
	}
	return p, nil
}

func parseInt64Param(req *http.Request, name string) (int64, error) {
	raw := req.FormValue(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrParseRequest.WithCausef(err, "param:%s, value:%q", name, raw)
	}
	return v, nil
}

func parseInt32Param(req *http.Request, name string) (int32, error) {
	raw := req.FormValue(name)
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, ErrParseRequest.WithCausef(err, "param:%s, value:%q", name, raw)
	}
	return int32(v), nil
}

func parseIntParam(req *http.Request, name string, defaultValue int) (int, error) {
	raw := req.FormValue(name)
	if len(raw) == 0 {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrParseRequest.WithCausef(err, "param:%s, value:%q", name, raw)
	}
	if v < 0 {
		return 0, ErrParseRequest.WithMessagef("negative param:%s, value:%d", name, v)
	}
	return v, nil
}

// failure logs the error and turns it into the error reported to the client.
func failure(action string, err error) apiFuncResult {
	cErr := toCodeError(err)
	if cErr.Code() == coderr.Internal {
		log.Error(action+" failed", zap.String("err", coderr.FormatErrorWithStack(err)))
	} else {
		log.Info(action+" rejected", zap.Error(err))
	}
	return errResult(cErr)
}

func toCodeError(err error) coderr.CodeError {
	if cErr, ok := errors.Cause(err).(coderr.CodeError); ok {
		return cErr
	}
	return ErrInternal.WithCause(err)
}

// printRequestInsmt used for printing every request information.
func printRequestInsmt(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		bodyByte, err := io.ReadAll(request.Body)
		if err != nil {
			log.Error("read request body failed", zap.Error(err))
			return
		}
		request.Body = io.NopCloser(bytes.NewReader(bodyByte))
		log.Debug("receive http request", zap.String("handlerName", handlerName), zap.String("client host", request.RemoteAddr),
			zap.String("method", request.Method), zap.String("query", request.URL.RawQuery), zap.Int("bodySize", len(bodyByte)))
		handler.ServeHTTP(writer, request)
	}
}

// respond writes the fields of data next to the "ok" code.
func respond(w http.ResponseWriter, data any) {
	fields := map[string]json.RawMessage{}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Error("marshal json response failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			log.Error("response data is not an object", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	fields["code"] = json.RawMessage(strconv.Quote(codeOK))

	b, err := json.Marshal(fields)
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func respondError(w http.ResponseWriter, apiErr coderr.CodeError) {
	message := apiErr.Message()
	if apiErr.Code() == coderr.Internal {
		message = "internal error"
	}
	b, err := json.Marshal(&errorResponse{
		Code:    codeError,
		Message: message,
	})
	if err != nil {
		log.Error("marshal json response failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, apiErr.Code().ToHTTPCode(), b)
}

func writeJSON(w http.ResponseWriter, statusCode int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if n, err := w.Write(b); err != nil {
		log.Error("write response failed", zap.Int("msg", n), zap.Error(err))
	}
}

func (a *API) wrap(f apiFunc, limited bool) http.HandlerFunc {
	hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limited && !a.flowLimiter.Allow() {
			respondError(w, ErrFlowLimited.WithMessagef("path:%s", r.URL.Path))
			return
		}
		result := f(r)
		if result.err != nil {
			respondError(w, result.err)
			return
		}
		respond(w, result.data)
	})
	return hf
}
