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
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openrefine/refine-core/pkg/log"
	"github.com/openrefine/refine-core/server/change"
	"github.com/openrefine/refine-core/server/changedata"
	"github.com/openrefine/refine-core/server/grid"
	"github.com/openrefine/refine-core/server/process"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	NameAddColumnByFetchingURLs = "core/column-addition-by-fetching-urls"
	fetchSlot                   = "urls"
	DefaultFetchDelay           = 500 * time.Millisecond
	DefaultFetchTimeout         = 5 * time.Second
	maxResponseBytes            = 1 << 20
)

// AddColumnByFetchingURLs adds a column holding the bodies fetched from the URLs of another column.
type AddColumnByFetchingURLs struct {
	BaseColumnName string `json:"baseColumnName"`
	NewColumnName  string `json:"newColumnName"`
	// DelayMs is the minimum delay between two requests.
	DelayMs int `json:"delay"`
	// TimeoutMs bounds every request.
	TimeoutMs int `json:"timeout"`
	// StoreErrors keeps the error message in the cell when a request fails, the cell is empty otherwise.
	StoreErrors bool `json:"storeErrors,omitempty"`

	client *http.Client
}

func (o *AddColumnByFetchingURLs) Name() string {
	return NameAddColumnByFetchingURLs
}

func (o *AddColumnByFetchingURLs) Description() string {
	return fmt.Sprintf("Create column %s by fetching URLs based on column %s", o.NewColumnName, o.BaseColumnName)
}

func (o *AddColumnByFetchingURLs) Plan(g *grid.Grid) (*Plan, error) {
	baseIndex, err := checkColumns(g, o.BaseColumnName, o.NewColumnName)
	if err != nil {
		return nil, err
	}
	if o.DelayMs < 0 || o.TimeoutMs < 0 {
		return nil, ErrInvalidOperation.WithMessagef("negative delay or timeout, delay:%d, timeout:%d", o.DelayMs, o.TimeoutMs)
	}

	delay, timeout := DefaultFetchDelay, DefaultFetchTimeout
	if o.DelayMs > 0 {
		delay = time.Duration(o.DelayMs) * time.Millisecond
	}
	if o.TimeoutMs > 0 {
		timeout = time.Duration(o.TimeoutMs) * time.Millisecond
	}
	client := o.client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	urls := columnValues(g, baseIndex)
	compute := func(ctx context.Context, reporter process.Reporter, sink Sink) error {
		limiter := rate.NewLimiter(rate.Every(delay), 1)
		data := make(changedata.Data, len(urls))
		for i, v := range urls {
			url, ok := v.(string)
			if !ok || len(url) == 0 {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			body, err := fetch(ctx, client, url, timeout)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Debug("fetch url failed", zap.String("url", url), zap.Error(err))
				if o.StoreErrors {
					data[i] = err.Error()
				}
			} else {
				data[i] = body
			}

			// Every fetched row is published, fetching is slow compared to storing.
			if err := sink.Write(ctx, data.Clone(), false); err != nil {
				return errors.WithMessagef(err, "flush at row:%d", i)
			}
			reporter.SetProgress((i + 1) * 100 / len(urls))
		}
		return sink.Write(ctx, data, true)
	}

	return &Plan{
		Change:  &change.ColumnAdditionChange{ColumnName: o.NewColumnName, Slot: fetchSlot},
		Slot:    fetchSlot,
		Compute: compute,
	}, nil
}

func fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.WithMessagef(err, "build request, url:%s", url)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.WithMessagef(err, "get url:%s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("HTTP error %d : %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.WithMessagef(err, "read body, url:%s", url)
	}
	return string(body), nil
}
