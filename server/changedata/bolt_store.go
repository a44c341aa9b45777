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
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var changeDataBucketKey = []byte("changedata")

const (
	headerLen    = 5
	flagComplete = byte(1)
)

// BoltStore keeps change data in a BoltDB file. Every history entry owns a nested bucket whose
// keys are the slot names.
//
// Values are laid out as: murmur3 checksum of the payload (4 bytes) | flags (1 byte) | JSON payload.
type BoltStore struct {
	logger *zap.Logger

	// lock protects db against concurrent Close.
	lock sync.RWMutex
	db   *bbolt.DB
}

func OpenBoltStore(logger *zap.Logger, path string, openTimeout time.Duration) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, ErrOpenStore.WithCausef(err, "path:%s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(changeDataBucketKey)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, ErrOpenStore.WithCausef(err, "create root bucket, path:%s", path)
	}

	logger.Info("change data store opened", zap.String("path", path))
	return &BoltStore{
		logger: logger,
		lock:   sync.RWMutex{},
		db:     db,
	}, nil
}

func (s *BoltStore) Store(ctx context.Context, id ID, data Data, complete bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return ErrEncode.WithCausef(err, "id:%s", id)
	}
	value := encodeValue(payload, complete)

	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.db == nil {
		return ErrStoreClosed.WithMessagef("id:%s", id)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		entry, err := tx.Bucket(changeDataBucketKey).CreateBucketIfNotExists(marshalEntryID(id.HistoryEntryID))
		if err != nil {
			return err
		}
		return entry.Put([]byte(id.Slot), value)
	})
}

func (s *BoltStore) Retrieve(ctx context.Context, id ID) (Data, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.db == nil {
		return nil, false, ErrStoreClosed.WithMessagef("id:%s", id)
	}

	var (
		payload  []byte
		complete bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		entry := tx.Bucket(changeDataBucketKey).Bucket(marshalEntryID(id.HistoryEntryID))
		if entry == nil {
			return ErrNotFound.WithMessagef("id:%s", id)
		}
		value := entry.Get([]byte(id.Slot))
		if value == nil {
			return ErrNotFound.WithMessagef("id:%s", id)
		}

		var err error
		// The value is only valid during the transaction.
		payload, complete, err = decodeValue(value)
		if err != nil {
			return err
		}
		payload = append([]byte(nil), payload...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false, ErrCorrupted.WithCausef(err, "id:%s", id)
	}
	return data, complete, nil
}

func (s *BoltStore) Discard(ctx context.Context, historyEntryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.db == nil {
		return ErrStoreClosed.WithMessagef("history entry:%d", historyEntryID)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(changeDataBucketKey).DeleteBucket(marshalEntryID(historyEntryID))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

func (s *BoltStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// marshalEntryID uses big endian so that the nested buckets are ordered by entry id.
func marshalEntryID(id int64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(id))
	return data
}

func encodeValue(payload []byte, complete bool) []byte {
	value := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint32(value, murmur3.Sum32(payload))
	if complete {
		value[4] = flagComplete
	}
	copy(value[headerLen:], payload)
	return value
}

func decodeValue(value []byte) ([]byte, bool, error) {
	if len(value) < headerLen {
		return nil, false, ErrCorrupted.WithMessagef("value is too short, len:%d", len(value))
	}
	payload := value[headerLen:]
	expect := binary.BigEndian.Uint32(value)
	if actual := murmur3.Sum32(payload); actual != expect {
		return nil, false, ErrCorrupted.WithMessagef("checksum mismatch, expect:%d, actual:%d", expect, actual)
	}
	return payload, value[4]&flagComplete != 0, nil
}
