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
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testToken = "5f1c2d"

func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) {
	mux := http.NewServeMux()
	mux.HandleFunc(APICSRFToken, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":"ok","token":"` + testToken + `"}`))
	})
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	viper.Set(RootServerAddr, strings.TrimPrefix(srv.URL, HTTP))
	viper.Set(RootProject, "1234")
	viper.Set(RootOutput, OutputTable)
}

func TestProcessCancelSendsToken(t *testing.T) {
	re := require.New(t)

	newTestServer(t, map[string]http.HandlerFunc{
		APICancelProcess: func(w http.ResponseWriter, r *http.Request) {
			re.Equal(http.MethodPost, r.Method)
			re.NoError(r.ParseForm())
			re.Equal(testToken, r.PostForm.Get("csrf_token"))
			re.Equal("1234", r.PostForm.Get("project"))
			re.Equal("7", r.PostForm.Get("id"))
			_, _ = w.Write([]byte(`{"code":"ok","newHistoryEntryId":5678}`))
		},
	})

	var out bytes.Buffer
	re.NoError(ProcessCancel(&out, 7))
	re.Contains(out.String(), "rewound to entry:5678")
}

func TestProcessCancelFailure(t *testing.T) {
	re := require.New(t)

	newTestServer(t, map[string]http.HandlerFunc{
		APICancelProcess: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"error","message":"no such process"}`))
		},
	})

	var out bytes.Buffer
	err := ProcessCancel(&out, 7)
	re.Error(err)
	re.Contains(err.Error(), "no such process")
	re.Empty(out.String())
}

func TestHistoryShow(t *testing.T) {
	re := require.New(t)

	newTestServer(t, map[string]http.HandlerFunc{
		APIHistory: func(w http.ResponseWriter, r *http.Request) {
			re.Equal("1234", r.URL.Query().Get("project"))
			_, _ = w.Write([]byte(`{"code":"ok","position":1,` +
				`"past":[{"id":10,"description":"Rename column a to b","kind":"core/column-rename","time":"2024-01-02T03:04:05Z"}],` +
				`"future":[{"id":11,"description":"Remove 2 rows","kind":"core/row-removal","time":"2024-01-02T03:05:05Z"}]}`))
		},
	})

	var out bytes.Buffer
	re.NoError(HistoryShow(&out))
	re.Contains(out.String(), "Rename column a to b")
	re.Contains(out.String(), "Remove 2 rows")

	viper.Set(RootOutput, OutputYAML)
	out.Reset()
	re.NoError(HistoryShow(&out))
	re.Contains(out.String(), "position: 1")
	re.Contains(out.String(), "kind: core/row-removal")
}

func TestProjectsList(t *testing.T) {
	re := require.New(t)

	newTestServer(t, map[string]http.HandlerFunc{
		APIProjects: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"code":"ok","projects":[{"id":1234,"name":"Sales","created":"2024-01-02T03:04:05Z","modified":"2024-01-02T03:04:05Z"}]}`))
		},
	})

	var out bytes.Buffer
	re.NoError(ProjectsList(&out))
	re.Contains(out.String(), "Sales")
	re.Contains(out.String(), "1234")
}
