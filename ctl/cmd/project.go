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

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Operations on projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operation.ProjectsList(cmd.OutOrStdout())
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project, optionally from a grid file in json",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		if len(name) == 0 {
			return errors.New("project name is required")
		}
		grid, _ := cmd.Flags().GetString("grid")
		return operation.ProjectCreate(cmd.OutOrStdout(), name, grid)
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)

	projectCreateCmd.Flags().String("name", "", "name of the project")
	projectCreateCmd.Flags().String("grid", "", "path of a json file holding the initial grid")
}
