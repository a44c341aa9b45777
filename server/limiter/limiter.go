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
	"sync"

	"github.com/openrefine/refine-core/server/config"
	"golang.org/x/time/rate"
)

// FlowLimiter throttles the commands served by the http api.
type FlowLimiter struct {
	l *rate.Limiter

	// lock protects following fields.
	lock   sync.RWMutex
	limit  int
	burst  int
	enable bool
}

func NewFlowLimiter(cfg config.LimiterConfig) *FlowLimiter {
	return &FlowLimiter{
		l:      rate.NewLimiter(rate.Limit(cfg.Limit), cfg.Burst),
		lock:   sync.RWMutex{},
		limit:  cfg.Limit,
		burst:  cfg.Burst,
		enable: cfg.Enable,
	}
}

// Allow reports whether a request may be served now. It always succeeds when the limiter is disabled.
func (f *FlowLimiter) Allow() bool {
	f.lock.RLock()
	enable := f.enable
	f.lock.RUnlock()

	if !enable {
		return true
	}
	return f.l.Allow()
}

func (f *FlowLimiter) UpdateLimiter(cfg config.LimiterConfig) error {
	if cfg.Limit < 0 || cfg.Burst < 0 {
		return ErrInvalidLimiterConfig.WithMessagef("limit:%d, burst:%d", cfg.Limit, cfg.Burst)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	f.l.SetLimit(rate.Limit(cfg.Limit))
	f.l.SetBurst(cfg.Burst)
	f.limit = cfg.Limit
	f.burst = cfg.Burst
	f.enable = cfg.Enable
	return nil
}

func (f *FlowLimiter) GetConfig() config.LimiterConfig {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return config.LimiterConfig{
		Limit:  f.limit,
		Burst:  f.burst,
		Enable: f.enable,
	}
}
