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

const (
	HTTP          = "http://"
	CommandPrefix = "/command/core"

	APICSRFToken          = CommandPrefix + "/get-csrf-token"
	APIProjects           = CommandPrefix + "/get-all-project-metadata"
	APICreateProject      = CommandPrefix + "/create-project"
	APIProcesses          = CommandPrefix + "/get-processes"
	APICancelProcess      = CommandPrefix + "/cancel-process"
	APIClearProcessErrors = CommandPrefix + "/clear-process-errors"
	APIHistory            = CommandPrefix + "/get-history"
	APIUndoRedo           = CommandPrefix + "/undo-redo"
	APIApplyOperation     = CommandPrefix + "/apply-operation"
	APIDeleteProject      = CommandPrefix + "/delete-project"

	RootServerAddr = "server_addr"
	RootProject    = "project"
	RootOutput     = "output"

	OutputTable = "table"
	OutputYAML  = "yaml"
)

var (
	projectsListHeader  = []string{"ID", "Name", "Created", "Modified"}
	processesListHeader = []string{"ID", "Description", "State", "Progress", "HistoryEntryID", "Slot"}
	processErrorsHeader = []string{"ProcessID", "Description", "HistoryEntryID", "Message", "Time"}
	historyHeader       = []string{"", "ID", "Description", "Kind", "Time"}
)
