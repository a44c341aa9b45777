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

package csrf

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// Validator checks the token sent along with a state changing request.
type Validator interface {
	Validate(token string) bool
}

// TokenFactory issues tokens valid for a fixed duration. When more than cacheSize tokens are live,
// the least recently used ones are forgotten.
type TokenFactory struct {
	ttl    time.Duration
	tokens *lru.Cache
	now    func() time.Time
}

func NewTokenFactory(ttl time.Duration, cacheSize int) (*TokenFactory, error) {
	tokens, err := lru.New(cacheSize)
	if err != nil {
		return nil, ErrCreateTokens.WithCausef(err, "size:%d", cacheSize)
	}
	return &TokenFactory{
		ttl:    ttl,
		tokens: tokens,
		now:    time.Now,
	}, nil
}

func (f *TokenFactory) FreshToken() string {
	token := uuid.NewString()
	f.tokens.Add(token, f.now().Add(f.ttl))
	return token
}

func (f *TokenFactory) Validate(token string) bool {
	if len(token) == 0 {
		return false
	}
	v, ok := f.tokens.Get(token)
	if !ok {
		return false
	}
	if f.now().After(v.(time.Time)) {
		f.tokens.Remove(token)
		return false
	}
	return true
}

// Check returns ErrCSRFFailed when the token is not valid.
func Check(v Validator, token string) error {
	if !v.Validate(token) {
		return ErrCSRFFailed.WithMessagef("token:%q", token)
	}
	return nil
}
