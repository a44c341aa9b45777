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

package server

import (
	"context"
	"net/http"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openrefine/refine-core/pkg/log"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/command"
	"github.com/openrefine/refine-core/server/config"
	"github.com/openrefine/refine-core/server/csrf"
	"github.com/openrefine/refine-core/server/id"
	"github.com/openrefine/refine-core/server/limiter"
	"github.com/openrefine/refine-core/server/process"
	"github.com/openrefine/refine-core/server/project"
	httpservice "github.com/openrefine/refine-core/server/service/http"
	"github.com/openrefine/refine-core/server/status"
	"github.com/openrefine/refine-core/server/storage"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	AllocProjectIDPrefix  = "ProjectID"
	AllocEntryIDPrefix    = "HistoryEntryID"
	openChangeDataTimeout = 5 * time.Second
	defaultScanBatchSize  = 100
)

type Server struct {
	isClosed int32
	status   *status.ServerStatus

	cfg *config.Config

	// etcdCli is nil when the projects are kept in memory.
	etcdCli     *clientv3.Client
	changeData  changedata.Store
	projects    *project.Manager
	flowLimiter *limiter.FlowLimiter
	httpService *httpservice.Service

	bgJobWg  sync.WaitGroup
	runErrCh chan error
}

// CreateServer creates the server instance without starting any services or background jobs.
func CreateServer(cfg *config.Config) (*Server, error) {
	srv := &Server{
		isClosed:    0,
		status:      status.NewServerStatus(),
		cfg:         cfg,
		etcdCli:     nil,
		changeData:  nil,
		projects:    nil,
		flowLimiter: limiter.NewFlowLimiter(cfg.FlowLimiter),
		httpService: nil,
		bgJobWg:     sync.WaitGroup{},
		runErrCh:    make(chan error, 1),
	}
	return srv, nil
}

// Run opens the stores and the persisted projects and starts serving http requests.
func (srv *Server) Run(ctx context.Context) error {
	if srv.IsClosed() {
		return ErrServerClosed.WithMessagef("run server")
	}

	if err := srv.createEtcdClient(); err != nil {
		return err
	}
	if err := srv.openChangeData(); err != nil {
		return err
	}
	if err := srv.startProjects(ctx); err != nil {
		return err
	}
	if err := srv.startHTTPService(); err != nil {
		return err
	}

	srv.status.Set(status.StatusRunning)
	log.Info("server is running", zap.Int("httpPort", srv.cfg.HTTPPort), zap.Bool("persistent", srv.etcdCli != nil))
	return nil
}

// RunErr reports the failure of the http service after Run returned.
func (srv *Server) RunErr() <-chan error {
	return srv.runErrCh
}

func (srv *Server) IsClosed() bool {
	return atomic.LoadInt32(&srv.isClosed) == 1
}

// Close stops the http service, then the processes of every project, then releases the stores.
func (srv *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&srv.isClosed, 0, 1) {
		return nil
	}
	srv.status.Set(status.StatusStopping)

	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulStopTimeout())
	defer cancel()

	var err error
	if srv.httpService != nil {
		err = multierr.Append(err, srv.httpService.Stop(ctx))
	}
	srv.bgJobWg.Wait()

	if srv.projects != nil {
		err = multierr.Append(err, srv.projects.Stop(ctx))
	}
	if srv.changeData != nil {
		err = multierr.Append(err, srv.changeData.Close())
	}
	if srv.etcdCli != nil {
		err = multierr.Append(err, srv.etcdCli.Close())
	}

	srv.status.Set(status.StatusStopped)
	if err != nil {
		log.Error("fail to close server", zap.Error(err))
	}
	return err
}

func (srv *Server) createEtcdClient() error {
	endpoints := srv.cfg.EtcdEndpoints()
	if len(endpoints) == 0 {
		log.Warn("no etcd endpoints configured, projects are kept in memory")
		return nil
	}

	lgc := log.GetLoggerConfig()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: srv.cfg.EtcdCallTimeout(),
		LogConfig:   lgc,
	})
	if err != nil {
		return ErrCreateEtcdClient.WithCausef(err, "endpoints:%v", endpoints)
	}
	srv.etcdCli = client
	return nil
}

func (srv *Server) openChangeData() error {
	changeDataPath := srv.cfg.ChangeDataPath()
	if len(changeDataPath) == 0 {
		log.Warn("no data dir configured, change data is kept in memory")
		srv.changeData = changedata.NewMemStore()
		return nil
	}

	if err := os.MkdirAll(srv.cfg.DataDir, 0o750); err != nil {
		return ErrOpenChangeData.WithCausef(err, "create data dir:%s", srv.cfg.DataDir)
	}
	store, err := changedata.OpenBoltStore(log.With(zap.String("component", "changedata")), changeDataPath, openChangeDataTimeout)
	if err != nil {
		return ErrOpenChangeData.WithCausef(err, "path:%s", changeDataPath)
	}
	srv.changeData = store
	return nil
}

func (srv *Server) startProjects(ctx context.Context) error {
	var (
		st         storage.Storage
		projectIDs id.Allocator
		entryIDs   id.Allocator
	)
	if srv.etcdCli != nil {
		rootPath := srv.cfg.Etcd.RootPath
		st = storage.NewEtcdStorageImpl(log.With(zap.String("component", "storage")), srv.etcdCli, rootPath,
			storage.Options{ScanBatchSize: defaultScanBatchSize})
		projectIDs = id.NewAllocatorImpl(log.GetLogger(), srv.etcdCli, path.Join(rootPath, AllocProjectIDPrefix), srv.cfg.Etcd.IDAllocStep)
		entryIDs = id.NewAllocatorImpl(log.GetLogger(), srv.etcdCli, path.Join(rootPath, AllocEntryIDPrefix), srv.cfg.Etcd.IDAllocStep)
	} else {
		projectIDs = id.NewMonotonicAllocator()
		entryIDs = id.NewMonotonicAllocator()
	}

	srv.projects = project.NewManager(log.With(zap.String("component", "project")), project.ManagerConfig{
		Process: process.ManagerConfig{
			Workers:         srv.cfg.Process.Workers,
			MaxLatestErrors: srv.cfg.Process.MaxLatestErrors,
		},
	}, st, srv.changeData, projectIDs, entryIDs)

	callCtx, cancel := context.WithTimeout(ctx, srv.cfg.EtcdCallTimeout())
	defer cancel()
	if err := srv.projects.Start(callCtx); err != nil {
		return ErrStartServer.WithCausef(err, "start projects")
	}
	return nil
}

func (srv *Server) startHTTPService() error {
	tokens, err := csrf.NewTokenFactory(srv.cfg.CSRFTokenTTL(), srv.cfg.CSRF.CacheSize)
	if err != nil {
		return ErrCreateCSRFFactory.WithCause(err)
	}
	commands := command.New(log.With(zap.String("component", "command")), tokens, srv.projects)

	api := httpservice.NewAPI(srv.projects, commands, tokens, srv.status, srv.flowLimiter, httpservice.OperationDefaults{
		FlushEveryRows: srv.cfg.Process.FlushEveryRows,
		FetchDelayMs:   srv.cfg.Fetch.DelayMs,
		FetchTimeoutMs: srv.cfg.Fetch.TimeoutMs,
	})
	srv.httpService = httpservice.NewHTTPService(srv.cfg.HTTPPort, srv.cfg.HTTPReadTimeout(), srv.cfg.HTTPWriteTimeout(), api.NewAPIRouter())

	srv.bgJobWg.Add(1)
	go func() {
		defer srv.bgJobWg.Done()

		log.Info("http service starts", zap.Int("port", srv.cfg.HTTPPort))
		if err := srv.httpService.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http service failed", zap.Error(err))
			srv.runErrCh <- ErrStartServer.WithCausef(err, "http service")
		}
	}()
	return nil
}
