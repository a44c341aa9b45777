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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/pkg/log"
	"github.com/openrefine/refine-core/server"
	"github.com/openrefine/refine-core/server/config"
	"go.uber.org/zap"
)

var (
	buildDate  string
	branchName string
	commitID   string
)

func buildVersion() string {
	return fmt.Sprintf("RefineCore Server\nGit commit:%s\nGit branch:%s\nBuild date:%s", commitID, branchName, buildDate)
}

func panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(msg)
}

func main() {
	fmt.Printf("%s\n", buildVersion())

	cfgParser, err := config.MakeConfigParser()
	if err != nil {
		panicf("fail to generate config builder, err:%v", err)
	}

	cfg, err := cfgParser.Parse(os.Args[1:])
	if coderr.Is(err, coderr.PrintHelpUsage) {
		return
	}
	if err != nil {
		panicf("fail to parse config from command line params, err:%v", err)
	}

	if err := cfgParser.ParseConfigFromToml(); err != nil {
		panicf("fail to parse config from toml file, err:%v", err)
	}

	if err := cfgParser.ParseConfigFromEnv(); err != nil {
		panicf("fail to parse config from environment variable, err:%v", err)
	}

	if err := cfg.ValidateAndAdjust(); err != nil {
		panicf("invalid config, err:%v", err)
	}

	logger, err := log.InitGlobalLogger(&cfg.Log)
	if err != nil {
		panicf("fail to init global logger, err:%v", err)
	}
	defer logger.Sync() //nolint:errcheck
	log.Info("server start with config", zap.String("config", fmt.Sprintf("%+v", cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := server.CreateServer(cfg)
	if err != nil {
		log.Error("fail to create server", zap.Error(err))
		return
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	if err := srv.Run(ctx); err != nil {
		log.Error("fail to run server", zap.Error(err))
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("fail to close server", zap.Error(closeErr))
		}
		return
	}

	select {
	case sig := <-sc:
		log.Info("got signal to exit", zap.Any("signal", sig))
	case err := <-srv.RunErr():
		log.Error("server stopped unexpectedly", zap.Error(err))
	}

	if err := srv.Close(); err != nil {
		log.Error("fail to close server", zap.Error(err))
	}
}
