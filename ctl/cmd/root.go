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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openrefine/refine-core/ctl/operation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "refinectl",
	Short:         "refinectl is a command line tool for the refine core server",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run:           func(cmd *cobra.Command, args []string) {},
}

// Execute runs the command line once and then keeps reading commands from stdin.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	for _, arg := range os.Args {
		if arg == "-h" || arg == "--help" {
			os.Exit(0)
		}
	}

	in := bufio.NewReader(os.Stdin)
	for {
		printPrompt(viper.GetString(operation.RootServerAddr), viper.GetString(operation.RootProject))
		args, err := ReadArgs(in)
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return
		}
		rootCmd.SetArgs(args)
		if err = rootCmd.Execute(); err != nil {
			fmt.Println(err)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().String(operation.RootServerAddr, "127.0.0.1:3333", "address of the refine core server")
	_ = viper.BindPFlag(operation.RootServerAddr, rootCmd.PersistentFlags().Lookup(operation.RootServerAddr))

	rootCmd.PersistentFlags().StringP(operation.RootProject, "p", "", "id of the project to work on")
	_ = viper.BindPFlag(operation.RootProject, rootCmd.PersistentFlags().Lookup(operation.RootProject))

	rootCmd.PersistentFlags().StringP(operation.RootOutput, "o", operation.OutputTable, "output format, table or yaml")
	_ = viper.BindPFlag(operation.RootOutput, rootCmd.PersistentFlags().Lookup(operation.RootOutput))

	viper.SetEnvPrefix("REFINECTL")
	viper.AutomaticEnv()

	rootCmd.CompletionOptions = cobra.CompletionOptions{
		DisableDefaultCmd:   true,
		DisableNoDescFlag:   true,
		DisableDescriptions: true,
		HiddenDefaultCmd:    true,
	}
}

func printPrompt(address, project string) {
	if len(project) == 0 {
		project = "-"
	}
	fmt.Printf("%s(%s) > ", address, project)
}

// ReadArgs reads one command from in. A trailing backslash continues the command on the next
// line, and a single quoted section is kept as one argument.
func ReadArgs(in *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		raw, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || len(raw) == 0) {
			if len(lines) > 0 && err == io.EOF {
				break
			}
			return nil, err
		}
		line := strings.Trim(raw, "\r\n ")
		if len(line) == 0 {
			if len(lines) == 0 {
				return nil, nil
			}
			break
		}
		if line[len(line)-1] != '\\' {
			lines = append(lines, line)
			break
		}
		lines = append(lines, line[:len(line)-1])
		if err == io.EOF {
			break
		}
	}

	rawArgs := strings.Split(strings.Join(lines, " "), "'")
	if len(rawArgs) != 1 && len(rawArgs) != 3 {
		return nil, errors.New("unbalanced quote in command")
	}

	parts := strings.Split(rawArgs[0], " ")
	if len(rawArgs) == 3 {
		parts = append(parts, rawArgs[1])
		parts = append(parts, strings.Split(rawArgs[2], " ")...)
	}

	args := make([]string, 0, len(parts))
	for _, arg := range parts {
		if arg = strings.TrimSpace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	return args, nil
}
