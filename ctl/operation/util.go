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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const requestTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

// errorResponse is the body of every failed command.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func tableWriter(headers []string) table.Writer {
	header := table.Row{}
	for _, s := range headers {
		header = append(header, s)
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	return t
}

func commandURL(api string) string {
	return HTTP + viper.GetString(RootServerAddr) + api
}

// HTTPUtil sends the form and decodes the body into response. A body with the error code is
// returned as an error.
func HTTPUtil(method, api string, form url.Values, response any) error {
	var (
		request *http.Request
		err     error
	)
	if method == http.MethodGet {
		request, err = http.NewRequest(method, commandURL(api)+"?"+form.Encode(), nil)
	} else {
		request, err = http.NewRequest(method, commandURL(api), strings.NewReader(form.Encode()))
		if err == nil {
			request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return errors.WithMessagef(err, "build request, api:%s", api)
	}

	resp, err := httpClient.Do(request)
	if err != nil {
		return errors.WithMessagef(err, "send request, api:%s", api)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithMessagef(err, "read response, api:%s", api)
	}

	var errResp errorResponse
	if err := json.Unmarshal(b, &errResp); err != nil {
		return errors.WithMessagef(err, "decode response, api:%s, status:%d", api, resp.StatusCode)
	}
	if errResp.Code != "ok" {
		return errors.Errorf("%s failed, status:%d, message:%s", api, resp.StatusCode, errResp.Message)
	}
	if response == nil {
		return nil
	}
	return json.Unmarshal(b, response)
}

// PostCommand fetches a fresh csrf token and posts the form with it.
func PostCommand(api string, form url.Values, response any) error {
	var token struct {
		Token string `json:"token"`
	}
	if err := HTTPUtil(http.MethodGet, APICSRFToken, url.Values{}, &token); err != nil {
		return err
	}
	form.Set("csrf_token", token.Token)
	return HTTPUtil(http.MethodPost, api, form, response)
}

func projectForm() url.Values {
	return url.Values{"project": {viper.GetString(RootProject)}}
}

// render writes t, or v as yaml when the yaml output is selected.
func render(w io.Writer, t table.Writer, v any) error {
	if viper.GetString(RootOutput) == OutputYAML {
		b, err := yaml.Marshal(v)
		if err != nil {
			return errors.WithMessage(err, "encode yaml")
		}
		_, err = w.Write(b)
		return err
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func FormatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05.000")
}
