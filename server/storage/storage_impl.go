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

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strconv"
	"time"

	"github.com/openrefine/refine-core/pkg/coderr"
	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/etcdutil"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/history"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/clientv3util"
	"go.uber.org/zap"
)

const (
	Version      = "v1"
	PathProjects = "projects"
	PathProject  = "project"
	PathGrid     = "grid"
	PathEntry    = "entry"
	PathPosition = "position"
)

type Options struct {
	// ScanBatchSize is the number of keys fetched by a single range request.
	ScanBatchSize int
}

// EtcdStorageImpl lays the projects out as:
// /{rootPath}/v1/projects/{projectID} -> ProjectMeta
// /{rootPath}/v1/project/{projectID}/grid -> initial grid
// /{rootPath}/v1/project/{projectID}/entry/{index} -> history entry
// /{rootPath}/v1/project/{projectID}/position -> history position
type EtcdStorageImpl struct {
	logger   *zap.Logger
	client   *clientv3.Client
	rootPath string
	opts     Options
}

func NewEtcdStorageImpl(logger *zap.Logger, client *clientv3.Client, rootPath string, opts Options) Storage {
	if opts.ScanBatchSize <= 0 {
		opts.ScanBatchSize = 100
	}
	return &EtcdStorageImpl{
		logger:   logger,
		client:   client,
		rootPath: rootPath,
		opts:     opts,
	}
}

type entryRecord struct {
	ID          int64           `json:"id"`
	ParentID    int64           `json:"parentId"`
	Description string          `json:"description"`
	Time        time.Time       `json:"time"`
	Change      json.RawMessage `json:"change"`
}

func (e *EtcdStorageImpl) CreateProject(ctx context.Context, meta ProjectMeta, initial *grid.Grid) error {
	metaValue, err := json.Marshal(meta)
	if err != nil {
		return ErrEncode.WithCausef(err, "project meta:%d", meta.ID)
	}
	gridValue, err := json.Marshal(initial)
	if err != nil {
		return ErrEncode.WithCausef(err, "project grid:%d", meta.ID)
	}

	metaKey := e.projectMetaKey(meta.ID)
	resp, err := e.client.Txn(ctx).
		If(clientv3util.KeyMissing(metaKey)).
		Then(
			clientv3.OpPut(metaKey, string(metaValue)),
			clientv3.OpPut(e.gridKey(meta.ID), string(gridValue)),
			clientv3.OpPut(e.positionKey(meta.ID), strconv.Itoa(0)),
		).
		Commit()
	if err != nil {
		return ErrEtcdTxn.WithCausef(err, "create project:%d", meta.ID)
	}
	if !resp.Succeeded {
		return ErrProjectExists.WithMessagef("project:%d", meta.ID)
	}
	return nil
}

func (e *EtcdStorageImpl) ListProjects(ctx context.Context) ([]ProjectMeta, error) {
	var metas []ProjectMeta
	do := func(key string, value []byte) error {
		var meta ProjectMeta
		if err := json.Unmarshal(value, &meta); err != nil {
			return ErrDecode.WithCausef(err, "key:%s", key)
		}
		metas = append(metas, meta)
		return nil
	}

	startKey := e.projectMetaKey(0)
	endKey := e.projectMetaKey(math.MaxInt64)
	if err := etcdutil.Scan(ctx, e.client, startKey, endKey, e.opts.ScanBatchSize, do); err != nil {
		return nil, errors.WithMessage(err, "scan projects")
	}
	return metas, nil
}

func (e *EtcdStorageImpl) LoadProject(ctx context.Context, projectID int64) (*ProjectRecord, error) {
	metaValue, err := etcdutil.Get(ctx, e.client, e.projectMetaKey(projectID))
	if err != nil {
		if coderr.Is(err, coderr.NotFound) {
			return nil, ErrProjectNotFound.WithMessagef("project:%d", projectID)
		}
		return nil, errors.WithMessagef(err, "get project meta:%d", projectID)
	}
	var meta ProjectMeta
	if err := json.Unmarshal([]byte(metaValue), &meta); err != nil {
		return nil, ErrDecode.WithCausef(err, "project meta:%d", projectID)
	}

	gridValue, err := etcdutil.Get(ctx, e.client, e.gridKey(projectID))
	if err != nil {
		return nil, errors.WithMessagef(err, "get project grid:%d", projectID)
	}
	initial := grid.Empty()
	if err := json.Unmarshal([]byte(gridValue), initial); err != nil {
		return nil, ErrDecode.WithCausef(err, "project grid:%d", projectID)
	}

	positionValue, err := etcdutil.Get(ctx, e.client, e.positionKey(projectID))
	if err != nil {
		return nil, errors.WithMessagef(err, "get history position:%d", projectID)
	}
	position, err := strconv.Atoi(positionValue)
	if err != nil {
		return nil, ErrDecode.WithCausef(err, "history position:%d", projectID)
	}

	var entries []*history.Entry
	do := func(key string, value []byte) error {
		entry, err := decodeEntry(value)
		if err != nil {
			return errors.WithMessagef(err, "key:%s", key)
		}
		entries = append(entries, entry)
		return nil
	}
	startKey, endKey := e.entryKey(projectID, 0), e.entryKey(projectID, math.MaxInt64)
	if err := etcdutil.Scan(ctx, e.client, startKey, endKey, e.opts.ScanBatchSize, do); err != nil {
		return nil, errors.WithMessagef(err, "scan history entries:%d", projectID)
	}

	return &ProjectRecord{
		Meta:     meta,
		Initial:  initial,
		Entries:  entries,
		Position: position,
	}, nil
}

func (e *EtcdStorageImpl) DeleteProject(ctx context.Context, projectID int64) error {
	projectPrefix := path.Join(e.rootPath, Version, PathProject, fmtID(projectID)) + "/"
	_, err := e.client.Txn(ctx).
		Then(
			clientv3.OpDelete(e.projectMetaKey(projectID)),
			clientv3.OpDelete(projectPrefix, clientv3.WithPrefix()),
		).
		Commit()
	if err != nil {
		return ErrEtcdTxn.WithCausef(err, "delete project:%d", projectID)
	}
	e.logger.Info("project deleted from storage", zap.Int64("projectID", projectID))
	return nil
}

func (e *EtcdStorageImpl) Journal(projectID int64) history.Journal {
	return &etcdJournal{storage: e, projectID: projectID}
}

type etcdJournal struct {
	storage   *EtcdStorageImpl
	projectID int64
}

func (j *etcdJournal) PutEntry(ctx context.Context, index int, entry *history.Entry) error {
	value, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	e := j.storage
	// The range delete must not overlap with the put in the same txn.
	opDeleteTail := clientv3.OpDelete(e.entryKey(j.projectID, int64(index)+1), clientv3.WithRange(e.entryKey(j.projectID, math.MaxInt64)))
	opPut := clientv3.OpPut(e.entryKey(j.projectID, int64(index)), value)
	if _, err := e.client.Txn(ctx).Then(opDeleteTail, opPut).Commit(); err != nil {
		return ErrEtcdTxn.WithCausef(err, "put history entry, project:%d, index:%d", j.projectID, index)
	}
	return nil
}

func (j *etcdJournal) PutPosition(ctx context.Context, position int) error {
	e := j.storage
	if _, err := e.client.Put(ctx, e.positionKey(j.projectID), strconv.Itoa(position)); err != nil {
		return ErrEtcdTxn.WithCausef(err, "put history position, project:%d", j.projectID)
	}
	return nil
}

func encodeEntry(entry *history.Entry) (string, error) {
	changeValue, err := change.Marshal(entry.Change)
	if err != nil {
		return "", errors.WithMessagef(err, "entry:%d", entry.ID)
	}
	value, err := json.Marshal(entryRecord{
		ID:          entry.ID,
		ParentID:    entry.ParentID,
		Description: entry.Description,
		Time:        entry.Time,
		Change:      changeValue,
	})
	if err != nil {
		return "", ErrEncode.WithCausef(err, "entry:%d", entry.ID)
	}
	return string(value), nil
}

func decodeEntry(value []byte) (*history.Entry, error) {
	var record entryRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, ErrDecode.WithCause(err)
	}
	c, err := change.Unmarshal(record.Change)
	if err != nil {
		return nil, errors.WithMessagef(err, "entry:%d", record.ID)
	}
	return &history.Entry{
		ID:          record.ID,
		ParentID:    record.ParentID,
		Description: record.Description,
		Time:        record.Time,
		Change:      c,
	}, nil
}

func (e *EtcdStorageImpl) projectMetaKey(projectID int64) string {
	return path.Join(e.rootPath, Version, PathProjects, fmtID(projectID))
}

func (e *EtcdStorageImpl) gridKey(projectID int64) string {
	return path.Join(e.rootPath, Version, PathProject, fmtID(projectID), PathGrid)
}

func (e *EtcdStorageImpl) positionKey(projectID int64) string {
	return path.Join(e.rootPath, Version, PathProject, fmtID(projectID), PathPosition)
}

func (e *EtcdStorageImpl) entryKey(projectID int64, index int64) string {
	return path.Join(e.rootPath, Version, PathProject, fmtID(projectID), PathEntry, fmtID(index))
}

func fmtID(id int64) string {
	return fmt.Sprintf("%020d", id)
}
