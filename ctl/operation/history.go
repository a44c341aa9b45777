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

type HistoryEntry struct {
	ID          int64     `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Time        time.Time `json:"time" yaml:"time"`
	Kind        string    `json:"kind" yaml:"kind"`
}

type HistoryResponse struct {
	Past     []HistoryEntry `json:"past" yaml:"past"`
	Future   []HistoryEntry `json:"future" yaml:"future"`
	Position int            `json:"position" yaml:"position"`
}

// HistoryShow lists the applied entries, marked with "*", followed by the ones available to redo.
func HistoryShow(w io.Writer) error {
	var response HistoryResponse
	if err := HTTPUtil(http.MethodGet, APIHistory, projectForm(), &response); err != nil {
		return err
	}

	t := tableWriter(historyHeader)
	for _, e := range response.Past {
		t.AppendRow(table.Row{"*", e.ID, e.Description, e.Kind, FormatTime(e.Time)})
	}
	for _, e := range response.Future {
		t.AppendRow(table.Row{"", e.ID, e.Description, e.Kind, FormatTime(e.Time)})
	}
	return render(w, t, response)
}

// HistoryUndoRedo makes entryID the last applied entry, zero undoes every entry.
func HistoryUndoRedo(w io.Writer, entryID int64) error {
	form := projectForm()
	form.Set("lastDoneID", fmt.Sprint(entryID))

	var response struct {
		Position int `json:"position"`
	}
	if err := PostCommand(APIUndoRedo, form, &response); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "history position:%d\n", response.Position)
	return err
}
