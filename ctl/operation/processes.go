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
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type ChangeDataID struct {
	HistoryEntryID int64  `json:"historyEntryId" yaml:"historyEntryId"`
	Slot           string `json:"slot" yaml:"slot"`
}

type Process struct {
	ID           int32        `json:"id" yaml:"id"`
	Description  string       `json:"description" yaml:"description"`
	State        string       `json:"state" yaml:"state"`
	Progress     int          `json:"progress" yaml:"progress"`
	ChangeDataID ChangeDataID `json:"changeDataId" yaml:"changeDataId"`
}

type ProcessError struct {
	ProcessID    int32        `json:"processId" yaml:"processId"`
	Description  string       `json:"description" yaml:"description"`
	ChangeDataID ChangeDataID `json:"changeDataId" yaml:"changeDataId"`
	Message      string       `json:"message" yaml:"message"`
	Time         time.Time    `json:"time" yaml:"time"`
}

type ProcessesResponse struct {
	Processes  []Process      `json:"processes" yaml:"processes"`
	Exceptions []ProcessError `json:"exceptions" yaml:"exceptions"`
}

func ProcessesList(w io.Writer) error {
	var response ProcessesResponse
	if err := HTTPUtil(http.MethodGet, APIProcesses, projectForm(), &response); err != nil {
		return err
	}

	t := tableWriter(processesListHeader)
	for _, p := range response.Processes {
		t.AppendRow(table.Row{p.ID, p.Description, p.State, fmt.Sprintf("%d%%", p.Progress), p.ChangeDataID.HistoryEntryID, p.ChangeDataID.Slot})
	}
	if len(response.Exceptions) > 0 {
		errs := tableWriter(processErrorsHeader)
		for _, e := range response.Exceptions {
			errs.AppendRow(table.Row{e.ProcessID, e.Description, e.ChangeDataID.HistoryEntryID, e.Message, FormatTime(e.Time)})
		}
		t.SetCaption("%s", errs.Render())
	}
	return render(w, t, response)
}

func ProcessCancel(w io.Writer, processID int32) error {
	form := projectForm()
	form.Set("id", fmt.Sprint(processID))

	var response struct {
		NewHistoryEntryID *int64 `json:"newHistoryEntryId"`
	}
	if err := PostCommand(APICancelProcess, form, &response); err != nil {
		return err
	}
	if response.NewHistoryEntryID != nil {
		_, err := fmt.Fprintf(w, "process %d cancelled, history rewound to entry:%d\n", processID, *response.NewHistoryEntryID)
		return err
	}
	_, err := fmt.Fprintf(w, "process %d cancelled\n", processID)
	return err
}

func ProcessClearErrors(w io.Writer) error {
	if err := PostCommand(APIClearProcessErrors, projectForm(), nil); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "process errors cleared")
	return err
}
