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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/openrefine/refine-core/server/config"
	"github.com/openrefine/refine-core/server/status"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunAndClose(t *testing.T) {
	re := require.New(t)

	parser, err := config.MakeConfigParser()
	re.NoError(err)
	port := freePort(t)
	cfg, err := parser.Parse([]string{"-http-port", fmt.Sprint(port), "-data-dir", t.TempDir()})
	re.NoError(err)
	re.NoError(cfg.ValidateAndAdjust())

	srv, err := CreateServer(cfg)
	re.NoError(err)
	re.NoError(srv.Run(context.Background()))
	re.Equal(status.StatusRunning, srv.status.Get())

	url := fmt.Sprintf("http://127.0.0.1:%d/command/core/get-csrf-token", port)
	var token map[string]string
	re.Eventually(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&token) == nil
	}, 5*time.Second, 20*time.Millisecond)
	re.Equal("ok", token["code"])
	re.NotEmpty(token["token"])

	re.NoError(srv.Close())
	re.True(srv.IsClosed())
	re.Equal(status.StatusStopped, srv.status.Get())
	re.NoError(srv.Close())

	re.Error(srv.Run(context.Background()))
}
