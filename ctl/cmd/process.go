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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Operations on the long running processes of a project",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return requireProject()
	},
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the processes and the latest process errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.ProcessesList(cmd.OutOrStdout())
	},
}

var processCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a process, rewinding the history if its entry is applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt32("id")
		return operation.ProcessCancel(cmd.OutOrStdout(), id)
	},
}

var processClearErrorsCmd = &cobra.Command{
	Use:   "clear-errors",
	Short: "Forget the latest process errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.ProcessClearErrors(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.AddCommand(processListCmd)
	processCmd.AddCommand(processCancelCmd)
	processCmd.AddCommand(processClearErrorsCmd)

	processCancelCmd.Flags().Int32("id", 0, "id of the process")
	_ = processCancelCmd.MarkFlagRequired("id")
}

func requireProject() error {
	if len(viper.GetString(operation.RootProject)) == 0 {
		return errProjectRequired
	}
	return nil
}
