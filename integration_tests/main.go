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

// Command integration_tests drives a running refine core server through a project lifecycle:
// create, rename, a long running fetch that gets cancelled, and delete.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/openrefine/refine-core/ctl/operation"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var endpoint = "127.0.0.1:3333"

func init() {
	if v := os.Getenv("REFINE_ADDR"); v != "" {
		endpoint = v
	}
	viper.Set(operation.RootServerAddr, endpoint)
}

type historyEntry struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
}

type applyResult struct {
	Entry   historyEntry `json:"historyEntry"`
	Process *struct {
		ID int32 `json:"id"`
	} `json:"process"`
}

type historyResult struct {
	Past     []historyEntry `json:"past"`
	Future   []historyEntry `json:"future"`
	Position int            `json:"position"`
}

// hangingServer accepts the fetches and never answers, so the fetch process stays running.
func hangingServer() (string, func(), error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})}
	go func() { _ = srv.Serve(l) }()
	return "http://" + l.Addr().String(), func() {
		close(release)
		_ = srv.Close()
	}, nil
}

func createProject(urlBase string) (int64, error) {
	grid := fmt.Sprintf(`{"columns":[{"name":"url"}],"rows":[[{"v":"%s/a"}],[{"v":"%s/b"}],[{"v":"%s/c"}]]}`, urlBase, urlBase, urlBase)
	var resp struct {
		ProjectID int64 `json:"projectID"`
	}
	err := operation.PostCommand(operation.APICreateProject, url.Values{"project-name": {"integration"}, "grid": {grid}}, &resp)
	return resp.ProjectID, err
}

func apply(projectID int64, op any) (applyResult, error) {
	var resp applyResult
	b, err := json.Marshal(op)
	if err != nil {
		return resp, err
	}
	form := url.Values{"project": {fmt.Sprint(projectID)}, "operation": {string(b)}}
	err = operation.PostCommand(operation.APIApplyOperation, form, &resp)
	return resp, err
}

func history(projectID int64) (historyResult, error) {
	var resp historyResult
	err := operation.HTTPUtil(http.MethodGet, operation.APIHistory, url.Values{"project": {fmt.Sprint(projectID)}}, &resp)
	return resp, err
}

func checkCancelRewindsHistory(projectID int64) error {
	rename, err := apply(projectID, map[string]any{
		"op":            "core/column-rename",
		"oldColumnName": "url",
		"newColumnName": "link",
	})
	if err != nil {
		return errors.WithMessage(err, "rename column")
	}

	fetch, err := apply(projectID, map[string]any{
		"op":             "core/column-addition-by-fetching-urls",
		"baseColumnName": "link",
		"newColumnName":  "body",
		"delay":          0,
		"timeout":        60000,
	})
	if err != nil {
		return errors.WithMessage(err, "fetch urls")
	}
	if fetch.Process == nil {
		return errors.New("fetching urls did not start a process")
	}

	var cancel struct {
		NewHistoryEntryID *int64 `json:"newHistoryEntryId"`
	}
	form := url.Values{"project": {fmt.Sprint(projectID)}, "id": {fmt.Sprint(fetch.Process.ID)}}
	if err := operation.PostCommand(operation.APICancelProcess, form, &cancel); err != nil {
		return errors.WithMessage(err, "cancel process")
	}
	if cancel.NewHistoryEntryID == nil || *cancel.NewHistoryEntryID != rename.Entry.ID {
		return errors.Errorf("expect history rewound to %d, got %v", rename.Entry.ID, cancel.NewHistoryEntryID)
	}

	h, err := history(projectID)
	if err != nil {
		return err
	}
	if h.Position != 1 || len(h.Future) != 1 || h.Future[0].ID != fetch.Entry.ID {
		return errors.Errorf("unexpected history after cancel: %+v", h)
	}

	if err := operation.PostCommand(operation.APICancelProcess, form, nil); err == nil {
		return errors.New("cancelling twice should fail")
	}
	return nil
}

func checkCancelWithoutCSRFToken(projectID int64) error {
	form := url.Values{"project": {fmt.Sprint(projectID)}, "id": {"1"}}
	err := operation.HTTPUtil(http.MethodPost, operation.APICancelProcess, form, nil)
	if err == nil {
		return errors.New("cancel without csrf token should fail")
	}
	return nil
}

func deleteProject(projectID int64) error {
	return operation.PostCommand(operation.APIDeleteProject, url.Values{"project": {fmt.Sprint(projectID)}}, nil)
}

func main() {
	fmt.Printf("Begin test, endpoint %s...\n", endpoint)
	start := time.Now()

	urlBase, stop, err := hangingServer()
	if err != nil {
		panic(err)
	}
	defer stop()

	projectID, err := createProject(urlBase)
	if err != nil {
		panic(err)
	}

	if err = checkCancelWithoutCSRFToken(projectID); err != nil {
		panic(err)
	}

	if err = checkCancelRewindsHistory(projectID); err != nil {
		panic(err)
	}

	if err = deleteProject(projectID); err != nil {
		panic(err)
	}

	fmt.Printf("Test done, cost:%s\n", time.Since(start))
}
