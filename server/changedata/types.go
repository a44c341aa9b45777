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
	"fmt"
)

// ID names the slot of auxiliary data computed for a history entry.
type ID struct {
	HistoryEntryID int64  `json:"historyEntryId"`
	Slot           string `json:"slot"`
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%s", id.HistoryEntryID, id.Slot)
}

// Data holds the computed values keyed by row index.
type Data map[int]any

func (d Data) Clone() Data {
	cloned := make(Data, len(d))
	for k, v := range d {
		cloned[k] = v
	}
	return cloned
}

// Loader is the read side of a Store.
type Loader interface {
	// Retrieve returns the data stored under id and whether the producer has finished.
	Retrieve(ctx context.Context, id ID) (Data, bool, error)
}

// Store persists change data while processes compute it.
type Store interface {
	Loader
	// Store replaces the data stored under id.
	Store(ctx context.Context, id ID, data Data, complete bool) error
	// Discard removes every slot of the given history entry.
	Discard(ctx context.Context, historyEntryID int64) error
	Close() error
}
