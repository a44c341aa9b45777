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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

type Project struct {
	ID       int64     `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Created  time.Time `json:"created" yaml:"created"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

type ProjectsResponse struct {
	Projects []Project `json:"projects" yaml:"projects"`
}

func ProjectsList(w io.Writer) error {
	var response ProjectsResponse
	if err := HTTPUtil(http.MethodGet, APIProjects, url.Values{}, &response); err != nil {
		return err
	}

	t := tableWriter(projectsListHeader)
	for _, p := range response.Projects {
		t.AppendRow(table.Row{p.ID, p.Name, FormatTime(p.Created), FormatTime(p.Modified)})
	}
	return render(w, t, response)
}

// ProjectCreate creates a project, the grid is read from gridFile when it is not empty.
func ProjectCreate(w io.Writer, name, gridFile string) error {
	form := url.Values{"project-name": {name}}
	if len(gridFile) > 0 {
		b, err := os.ReadFile(gridFile)
		if err != nil {
			return errors.WithMessagef(err, "read grid file:%s", gridFile)
		}
		form.Set("grid", string(b))
	}

	var response struct {
		ProjectID int64 `json:"projectID"`
	}
	if err := PostCommand(APICreateProject, form, &response); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "project created, id:%d\n", response.ProjectID)
	return err
}
