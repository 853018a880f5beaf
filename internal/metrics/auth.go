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
	// EnvelopeVerifications tracks signed-envelope verification outcomes.
	EnvelopeVerifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelope",
			Name:      "verifications_total",
			Help:      "Total number of signed request/response verifications",
		},
		[]string{"result"}, // ok, bad_signature, malformed
	)

	// TokenOperations tracks custom-token mint/decode operations.
	TokenOperations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "operations_total",
			Help:      "Total number of access/refresh token operations",
		},
		[]string{"token_type", "operation", "result"}, // access|refresh, encode|decode, ok|expired|corrupt
	)

	// AuthMiddlewareRequests tracks the Bearer/refresh-cookie state machine.
	AuthMiddlewareRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authmw",
			Name:      "requests_total",
			Help:      "Total number of requests processed by the auth middleware",
		},
		[]string{"tramo", "rotated", "result"}, // tramo1|tramo2, true|false, ok|unauthorized|forbidden
	)

	// KeyRotations tracks session-key rotation events.
	KeyRotations = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authmw",
			Name:      "key_rotations_total",
			Help:      "Total number of Tramo-2/3 key rotations performed",
		},
	)

	// CryptoOperationDuration tracks pseudonymizer/Argon2id/AEAD latencies.
	CryptoOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crypto",
			Name:      "operation_duration_seconds",
			Help:      "Cryptographic operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"operation"}, // pseudonymize, argon2id, sign, verify, aead_seal, aead_open
	)
)
