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

package process

import (
	"context"
	"time"

	"github.com/openrefine/refine-core/server/changedata"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Process is a cancellable background job computing the change data of a history entry.
type Process interface {
	ID() int32
	ChangeDataID() changedata.ID
	State() State
	// Cancel stops the process if it is pending or running, it is a no-op otherwise.
	// It returns as soon as the process has left the running state.
	Cancel()
}

// Reporter is used by a task to publish its progress.
type Reporter interface {
	SetProgress(percent int)
}

// Task is the computation run by a process. Run must return soon after ctx is done.
type Task interface {
	Run(ctx context.Context, reporter Reporter) error
}

type TaskFunc func(ctx context.Context, reporter Reporter) error

func (f TaskFunc) Run(ctx context.Context, reporter Reporter) error {
	return f(ctx, reporter)
}

// Info is the JSON view of a process.
type Info struct {
	ID           int32         `json:"id"`
	Description  string        `json:"description"`
	State        State         `json:"state"`
	Progress     int           `json:"progress"`
	ChangeDataID changedata.ID `json:"changeDataId"`
}

// ErrorInfo describes a process that failed.
type ErrorInfo struct {
	ProcessID    int32         `json:"processId"`
	Description  string        `json:"description"`
	ChangeDataID changedata.ID `json:"changeDataId"`
	Message      string        `json:"message"`
	Time         time.Time     `json:"time"`
}
