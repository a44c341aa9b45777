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

package change

import (
	"encoding/json"
	"sync"

	"github.com/openrefine/refine-core/server/history"
)

// Factory returns an empty change of a kind, ready to be decoded into.
type Factory func() history.Change

var (
	registryLock sync.RWMutex
	registry     = map[string]Factory{
		KindColumnAddition: func() history.Change { return &ColumnAdditionChange{} },
		KindColumnRename:   func() history.Change { return &ColumnRenameChange{} },
		KindRowRemoval:     func() history.Change { return &RowRemovalChange{} },
	}
)

// Register makes a change kind decodable. Registering a kind twice replaces the factory.
func Register(kind string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()

	registry[kind] = factory
}

type envelope struct {
	Kind   string          `json:"kind"`
	Change json.RawMessage `json:"change"`
}

func Marshal(c history.Change) ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, ErrEncodeChange.WithCausef(err, "kind:%s", c.Kind())
	}
	data, err := json.Marshal(envelope{Kind: c.Kind(), Change: raw})
	if err != nil {
		return nil, ErrEncodeChange.WithCausef(err, "kind:%s", c.Kind())
	}
	return data, nil
}

func Unmarshal(data []byte) (history.Change, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrDecodeChange.WithCause(err)
	}

	registryLock.RLock()
	factory, ok := registry[env.Kind]
	registryLock.RUnlock()
	if !ok {
		return nil, ErrUnknownKind.WithMessagef("kind:%s", env.Kind)
	}

	c := factory()
	if err := json.Unmarshal(env.Change, c); err != nil {
		return nil, ErrDecodeChange.WithCausef(err, "kind:%s", env.Kind)
	}
	return c, nil
}
