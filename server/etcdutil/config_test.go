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
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEmbeddedConfig(t *testing.T) {
	re := require.New(t)

	dir := t.TempDir()
	cfg, err := NewEmbeddedConfig("member_a", dir)
	re.NoError(err)
	re.Equal(dir, cfg.Dir)
	re.Len(cfg.ListenPeerUrls, 1)
	re.Len(cfg.ListenClientUrls, 1)
	re.Equal(cfg.ListenPeerUrls, cfg.AdvertisePeerUrls)
	re.Equal(cfg.ListenClientUrls, cfg.AdvertiseClientUrls)
	re.NotEqual(cfg.ListenPeerUrls[0].Host, cfg.ListenClientUrls[0].Host)
	re.Equal("member_a="+cfg.ListenPeerUrls[0].String(), cfg.InitialCluster)
	re.NoError(cfg.Validate())
}

func TestPrepareEtcdServerAndClient(t *testing.T) {
	re := require.New(t)

	etcd, client, closeSrv := PrepareEtcdServerAndClient(t)
	defer closeSrv()

	re.Equal(etcd.Config().ListenClientUrls[0].String(), client.Endpoints()[0])
	_, err := client.Put(context.Background(), "/refine/ping", "pong")
	re.NoError(err)
	value, err := Get(context.Background(), client, "/refine/ping")
	re.NoError(err)
	re.Equal("pong", value)
}
