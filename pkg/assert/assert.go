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

import "fmt"

// Violation is the panic value of a failed assertion.
type Violation struct {
	Message string
}

func (v Violation) Error() string {
	return "invariant violated: " + v.Message
}

// Assertf panics with a Violation carrying the formatted message if cond is false.
func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic(Violation{Message: fmt.Sprintf(format, a...)})
	}
}

// InRange panics unless lo <= v <= hi.
func InRange(v, lo, hi int, what string) {
	if v < lo || v > hi {
		panic(Violation{Message: fmt.Sprintf("%s out of range, value:%d, range:[%d, %d]", what, v, lo, hi)})
	}
}
