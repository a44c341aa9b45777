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

package project

import "github.com/openrefine/refine-core/pkg/coderr"

var (
	ErrUnknownProject = coderr.NewCodeErrorDef(coderr.UnknownProject, "project not open")
	ErrInvalidName    = coderr.NewCodeErrorDef(coderr.BadRequest, "invalid project name")
	ErrAllocID        = coderr.NewCodeErrorDef(coderr.Internal, "alloc id")
	ErrPlanOperation  = coderr.NewCodeErrorDef(coderr.BadRequest, "operation does not apply to the current grid")
	ErrManagerStopped = coderr.NewCodeErrorDef(coderr.Internal, "project manager is not running")
)
