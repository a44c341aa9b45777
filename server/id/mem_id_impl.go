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

package id

import (
	"context"
	"sync/atomic"
	"time"
)

// MonotonicAllocator is used when no etcd cluster is configured. It is seeded with the wall clock so
// that ids stay unique across restarts of a single node sharing the same data directory.
type MonotonicAllocator struct {
	last atomic.Uint64
}

func NewMonotonicAllocator() Allocator {
	return NewMonotonicAllocatorFrom(uint64(time.Now().UnixMilli()))
}

// NewMonotonicAllocatorFrom creates an allocator whose first id is start+1.
func NewMonotonicAllocatorFrom(start uint64) Allocator {
	a := &MonotonicAllocator{}
	a.last.Store(start)
	return a
}

func (a *MonotonicAllocator) Alloc(_ context.Context) (uint64, error) {
	return a.last.Add(1), nil
}

func (a *MonotonicAllocator) Collect(_ context.Context, id uint64) error {
	return ErrCollectNotSupported.WithMessagef("id:%d", id)
}
