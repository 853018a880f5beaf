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
	// MagicLinksIssued tracks magic-link issuance.
	MagicLinksIssued = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "magiclink",
			Name:      "issued_total",
			Help:      "Total number of magic links issued",
		},
	)

	// MagicLinksConsumed tracks consumption attempts by outcome.
	MagicLinksConsumed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "magiclink",
			Name:      "consumed_total",
			Help:      "Total number of magic-link consumption attempts",
		},
		[]string{"result"}, // ok, not_found, expired, bad_mac, already_used
	)

	// MagicLinksSwept tracks rows removed by the expiry sweeper.
	MagicLinksSwept = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "magiclink",
			Name:      "swept_total",
			Help:      "Total number of expired magic links removed by the sweeper",
		},
	)

	// SharedSecretsCreated tracks creation of shared secrets.
	SharedSecretsCreated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sharedsecret",
			Name:      "created_total",
			Help:      "Total number of shared secrets created",
		},
	)

	// SharedSecretReads tracks read attempts by role and outcome.
	SharedSecretReads = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sharedsecret",
			Name:      "reads_total",
			Help:      "Total number of shared-secret read attempts",
		},
		[]string{"role", "result"}, // sender|receiver, ok|not_found|bad_otp|expired
	)

	// SharedSecretConfirmReads tracks idempotent confirm-read calls.
	SharedSecretConfirmReads = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sharedsecret",
			Name:      "confirm_reads_total",
			Help:      "Total number of shared-secret confirm-read calls",
		},
	)

	// SharedSecretDeletes tracks role-aware deletes.
	SharedSecretDeletes = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sharedsecret",
			Name:      "deletes_total",
			Help:      "Total number of shared-secret deletes",
		},
		[]string{"role"},
	)

	// RateLimitRejections tracks requests rejected by the rate limiter.
	RateLimitRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
