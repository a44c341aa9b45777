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

package operation

import (
	"encoding/json"
)

type opHeader struct {
	Op string `json:"op"`
}

// Decode builds an operation from its JSON form, the "op" field selects the operation.
func Decode(data []byte) (Operation, error) {
	var header opHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, ErrInvalidOperation.WithCause(err)
	}

	var op Operation
	switch header.Op {
	case NameAddColumnByTransform:
		op = &AddColumnByTransform{}
	case NameAddColumnByFetchingURLs:
		op = &AddColumnByFetchingURLs{}
	case NameRenameColumn:
		op = &RenameColumn{}
	case NameRemoveRows:
		op = &RemoveRows{}
	default:
		return nil, ErrUnknownOperation.WithMessagef("op:%s", header.Op)
	}

	if err := json.Unmarshal(data, op); err != nil {
		return nil, ErrInvalidOperation.WithCausef(err, "op:%s", header.Op)
	}
	return op, nil
}
