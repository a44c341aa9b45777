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

	"github.com/openrefine/refine-core/pkg/log"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

func Get(ctx context.Context, client *clientv3.Client, key string) (string, error) {
	resp, err := client.Get(ctx, key)
	if err != nil {
		return "", ErrEtcdKVGet.WithCause(err)
	}
	if n := len(resp.Kvs); n == 0 {
		return "", ErrEtcdKVGetNotFound.WithMessagef("key:%s", key)
	} else if n > 1 {
		return "", ErrEtcdKVGetResponse.WithMessagef("key:%s, kvs:%v", key, resp.Kvs)
	}

	return string(resp.Kvs[0].Value), nil
}

// Scan visits the keys in the range [startKey, endKey) in batches of batchSize.
func Scan(ctx context.Context, client *clientv3.Client, startKey, endKey string, batchSize int, do func(key string, val []byte) error) error {
	withRange := clientv3.WithRange(endKey)
	withLimit := clientv3.WithLimit(int64(batchSize))

	// Take a special process for the first batch.
	resp, err := client.Get(ctx, startKey, withRange, withLimit)
	if err != nil {
		return ErrEtcdKVGet.WithCause(err)
	}
	if len(resp.Kvs) == 0 {
		return nil
	}

	doIfNotEndKey := func(key, val []byte) error {
		keyStr := string(key)
		if keyStr == endKey {
			return nil
		}

		return do(keyStr, val)
	}

	for _, item := range resp.Kvs {
		err := doIfNotEndKey(item.Key, item.Value)
		if err != nil {
			return err
		}
	}
	if len(resp.Kvs) < batchSize {
		return nil
	}

	lastKeyInPrevBatch := string(resp.Kvs[len(resp.Kvs)-1].Key)
	// The following batches always contain one key in the previous batch, so we have to increment the batchSize to batchSize + 1;
	withLimit = clientv3.WithLimit(int64(batchSize + 1))
	for {
		if lastKeyInPrevBatch == endKey {
			log.Warn("stop scanning because the end key is reached", zap.String("endKey", endKey))
			return nil
		}
		startKey = lastKeyInPrevBatch

		// Get the keys range [startKey, endKey).
		resp, err := client.Get(ctx, startKey, withRange, withLimit)
		if err != nil {
			return ErrEtcdKVGet.WithCause(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if len(resp.Kvs) <= 1 {
			// The only one key is `startKey` which is actually processed already.
			return nil
		}

		// Skip the first key which is processed already.
		for _, item := range resp.Kvs[1:] {
			err := doIfNotEndKey(item.Key, item.Value)
			if err != nil {
				return err
			}
		}

		// Check whether the keys is exhausted.
		if len(resp.Kvs) < batchSize+1 {
			return nil
		}

		lastKeyInPrevBatch = string(resp.Kvs[len(resp.Kvs)-1].Key)
	}
}

// DeleteRange removes the keys in the range [startKey, endKey) and returns how many were removed.
func DeleteRange(ctx context.Context, client *clientv3.Client, startKey, endKey string) (int64, error) {
	resp, err := client.Delete(ctx, startKey, clientv3.WithRange(endKey))
	if err != nil {
		return 0, ErrEtcdKVDelete.WithCause(err)
	}
	return resp.Deleted, nil
}
