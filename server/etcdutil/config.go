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

package etcdutil

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tikv/pd/pkg/tempurl"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
)

const embeddedStartTimeout = 30 * time.Second

type CloseFn = func()

// NewEmbeddedConfig builds a single member etcd config listening on free local ports, with its
// data kept under dataDir.
func NewEmbeddedConfig(name, dataDir string) (*embed.Config, error) {
	peerURL, err := url.Parse(tempurl.Alloc())
	if err != nil {
		return nil, ErrEmbeddedConfig.WithCausef(err, "peer url")
	}
	clientURL, err := url.Parse(tempurl.Alloc())
	if err != nil {
		return nil, ErrEmbeddedConfig.WithCausef(err, "client url")
	}

	cfg := embed.NewConfig()
	cfg.Name = name
	cfg.Dir = dataDir
	cfg.Logger = "zap"
	cfg.LogLevel = "error"
	cfg.LogOutputs = []string{"stderr"}
	cfg.ListenPeerUrls = []url.URL{*peerURL}
	cfg.AdvertisePeerUrls = []url.URL{*peerURL}
	cfg.ListenClientUrls = []url.URL{*clientURL}
	cfg.AdvertiseClientUrls = []url.URL{*clientURL}
	cfg.StrictReconfigCheck = false
	cfg.InitialCluster = fmt.Sprintf("%s=%s", name, peerURL)
	cfg.ClusterState = embed.ClusterStateFlagNew
	return cfg, nil
}

// PrepareEtcdServerAndClient starts an embedded etcd for the test and connects a client to it.
// The returned CloseFn stops both, the data directory is removed with the test.
func PrepareEtcdServerAndClient(t *testing.T) (*embed.Etcd, *clientv3.Client, CloseFn) {
	re := require.New(t)

	cfg, err := NewEmbeddedConfig("refine_test", t.TempDir())
	re.NoError(err)
	etcd, err := embed.StartEtcd(cfg)
	re.NoError(err)

	select {
	case <-etcd.Server.ReadyNotify():
	case <-time.After(embeddedStartTimeout):
		etcd.Close()
		re.FailNow("embedded etcd is not ready", "timeout:%s", embeddedStartTimeout)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{cfg.ListenClientUrls[0].String()},
		DialTimeout: embeddedStartTimeout,
	})
	re.NoError(err)

	closeSrv := func() {
		_ = client.Close()
		etcd.Close()
	}
	return etcd, client, closeSrv
}
