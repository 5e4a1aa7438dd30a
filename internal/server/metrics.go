// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sequencehive.server")

var (
	connectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sequencehive_ws_connections_total",
		Help: "Total websocket connections accepted.",
	})

	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequencehive_tool_executions_total",
		Help: "Total tool executions by tool and outcome.",
	}, []string{"tool", "outcome"})

	turnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sequencehive_turn_latency_seconds",
		Help:    "End-to-end latency of one router turn.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sequencehive_ws_connections_active",
		Help: "Currently open websocket connections.",
	})
)
