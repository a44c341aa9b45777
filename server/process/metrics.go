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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refine_process_submitted_total",
		Help: "Total number of processes submitted",
	})

	processFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refine_process_finished_total",
		Help: "Total number of processes reaching a terminal state",
	}, []string{"state"})

	processLiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refine_process_live",
		Help: "Current number of pending and running processes",
	})

	processDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refine_process_duration_seconds",
		Help:    "Time from submission to the terminal state of a process",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"state"})
)
