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

package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssertf(t *testing.T) {
	re := require.New(t)

	re.NotPanics(func() { Assertf(true, "never shown") })
	re.PanicsWithValue(Violation{Message: "entry 7 missing"}, func() { Assertf(false, "entry %d missing", 7) })
}

func TestInRange(t *testing.T) {
	re := require.New(t)

	re.NotPanics(func() { InRange(0, 0, 3, "cursor") })
	re.NotPanics(func() { InRange(3, 0, 3, "cursor") })
	re.PanicsWithValue(Violation{Message: "cursor out of range, value:4, range:[0, 3]"}, func() { InRange(4, 0, 3, "cursor") })
	re.PanicsWithError("invariant violated: cursor out of range, value:-1, range:[0, 3]", func() { InRange(-1, 0, 3, "cursor") })
}
