// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated tracks total sessions created.
	SessionsCreated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of sessions created",
		},
	)

	// SessionsActive tracks currently active sessions.
	SessionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of currently active sessions",
		},
	)

	// SessionsExpired tracks sessions destroyed by the idle sweeper.
	SessionsExpired = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Total number of sessions destroyed by idle sweep",
		},
	)

	// SessionsClosed tracks explicitly destroyed sessions.
	SessionsClosed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Total number of sessions explicitly destroyed",
		},
	)

	// SlicesPrepared tracks pipeline executions that produced a fresh slice.
	SlicesPrepared = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slices",
			Name:      "prepared_total",
			Help:      "Total number of slices prepared by the pipeline",
		},
	)

	// SlicesCoalesced tracks requests that joined an in-flight pipeline run
	// instead of starting their own.
	SlicesCoalesced = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slices",
			Name:      "coalesced_total",
			Help:      "Total number of slice requests coalesced into an in-flight run",
		},
	)

	// CacheEvictions tracks producer-side cache evictions (expired or LRU).
	CacheEvictions = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of slice cache evictions",
		},
	)

	// PrefetchFailures tracks prewarm/prefetch attempts that failed. These
	// never surface to a caller; this counter is the only visibility into them.
	PrefetchFailures = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "failures_total",
			Help:      "Total number of prewarm or prefetch attempts that failed",
		},
	)

	// BufferUnderrun tracks consumer-side playback stalls.
	BufferUnderrun = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "buffer_underrun_total",
			Help:      "Total number of buffer-underrun events during playback",
		},
	)
)
