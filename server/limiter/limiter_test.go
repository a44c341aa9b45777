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

package limiter

import (
	"testing"
	"time"

	"github.com/openrefine/refine-core/server/config"
	"github.com/stretchr/testify/require"
)

func TestFlowLimiter(t *testing.T) {
	re := require.New(t)

	flowLimiter := NewFlowLimiter(config.LimiterConfig{Limit: 1, Burst: 3, Enable: true})
	for i := 0; i < 3; i++ {
		re.True(flowLimiter.Allow())
	}
	re.False(flowLimiter.Allow())

	// A disabled limiter lets everything through.
	re.NoError(flowLimiter.UpdateLimiter(config.LimiterConfig{Limit: 1, Burst: 3, Enable: false}))
	for i := 0; i < 10; i++ {
		re.True(flowLimiter.Allow())
	}

	re.NoError(flowLimiter.UpdateLimiter(config.LimiterConfig{Limit: 100 * 1000, Burst: 100 * 1000, Enable: true}))
	cfg := flowLimiter.GetConfig()
	re.Equal(100*1000, cfg.Limit)
	re.Equal(100*1000, cfg.Burst)
	re.True(cfg.Enable)
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 1000; i++ {
		re.True(flowLimiter.Allow())
	}

	re.Error(flowLimiter.UpdateLimiter(config.LimiterConfig{Limit: -1}))
	re.Equal(100*1000, flowLimiter.GetConfig().Limit)
}
