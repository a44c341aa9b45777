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

package changedata

import (
	"context"
	"sync"
)

type memSlot struct {
	data     Data
	complete bool
}

// MemStore keeps change data in memory. It is used when no data directory is configured.
type MemStore struct {
	lock    sync.RWMutex
	entries map[int64]map[string]memSlot
}

func NewMemStore() *MemStore {
	return &MemStore{
		lock:    sync.RWMutex{},
		entries: make(map[int64]map[string]memSlot),
	}
}

func (s *MemStore) Store(_ context.Context, id ID, data Data, complete bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	slots, ok := s.entries[id.HistoryEntryID]
	if !ok {
		slots = make(map[string]memSlot)
		s.entries[id.HistoryEntryID] = slots
	}
	slots[id.Slot] = memSlot{data: data.Clone(), complete: complete}
	return nil
}

func (s *MemStore) Retrieve(_ context.Context, id ID) (Data, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	slot, ok := s.entries[id.HistoryEntryID][id.Slot]
	if !ok {
		return nil, false, ErrNotFound.WithMessagef("id:%s", id)
	}
	return slot.data.Clone(), slot.complete, nil
}

func (s *MemStore) Discard(_ context.Context, historyEntryID int64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.entries, historyEntryID)
	return nil
}

func (s *MemStore) Close() error {
	return nil
}
