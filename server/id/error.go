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

import "github.com/openrefine/refine-core/pkg/coderr"

var (
	ErrTxnPutEndID         = coderr.NewCodeErrorDef(coderr.Internal, "put end id in txn")
	ErrAllocID             = coderr.NewCodeErrorDef(coderr.Internal, "alloc id")
	ErrCollectNotSupported = coderr.NewCodeErrorDef(coderr.Internal, "collect is not supported")
)
