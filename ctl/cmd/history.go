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

package cmd

import (
	"github.com/openrefine/refine-core/ctl/operation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errProjectRequired = errors.New("project is required, set it with --project")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Operations on the history of a project",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return requireProject()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the applied entries and the ones that can be redone",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.HistoryShow(cmd.OutOrStdout())
	},
}

var historyUndoRedoCmd = &cobra.Command{
	Use:   "undo-redo",
	Short: "Move the history so that the entry is the last applied one, 0 undoes everything",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, _ := cmd.Flags().GetInt64("entry")
		return operation.HistoryUndoRedo(cmd.OutOrStdout(), entry)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyUndoRedoCmd)

	historyUndoRedoCmd.Flags().Int64("entry", 0, "id of the entry to rewind or replay to")
	_ = historyUndoRedoCmd.MarkFlagRequired("entry")
}
