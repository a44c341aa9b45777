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

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	re := require.New(t)

	_, err := InitGlobalLogger(&Config{Level: "info", File: "stdout"})
	re.NoError(err)
	re.Equal(zapcore.InfoLevel, GetLevel())

	re.NoError(SetLevel("debug"))
	re.Equal(zapcore.DebugLevel, GetLevel())

	re.Error(SetLevel("verbose"))
	re.Equal(zapcore.DebugLevel, GetLevel())
}

func TestInitGlobalLoggerInvalidLevel(t *testing.T) {
	re := require.New(t)

	_, err := InitGlobalLogger(&Config{Level: "loud"})
	re.Error(err)
	// The previous logger stays in place.
	re.NotNil(GetLogger())
}
