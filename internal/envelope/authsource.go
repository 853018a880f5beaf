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

package envelope

import "fmt"

// AuthSource identifies which of the three mutually-exclusive
// verification-key sources a request used.
type AuthSource int

const (
	AuthSourceNone AuthSource = iota
	AuthSourceBearer
	AuthSourcePubKey
	AuthSourceMagicLink
)

// RequestAuthInputs is the minimal set of fields needed to resolve which
// authentication source a request is using, per the strict rule in the
// signed-envelope design: a Bearer token and an embedded pub_key/magiclink
// in the payload are mutually exclusive, and at least one must be present.
type RequestAuthInputs struct {
	HasBearer      bool
	PayloadHasPub  bool
	PayloadHasLink bool
}

// ErrAmbiguousAuthSource is returned when a request supplies more than one
// verification-key source, or none at all.
var ErrAmbiguousAuthSource = fmt.Errorf("envelope: exactly one authentication source required")

// ResolveAuthSource applies the strict mutual-exclusion rule: Bearer XOR
// (pub_key XOR magiclink), never both, never neither.
func ResolveAuthSource(in RequestAuthInputs) (AuthSource, error) {
	present := 0
	if in.HasBearer {
		present++
	}
	if in.PayloadHasPub {
		present++
	}
	if in.PayloadHasLink {
		present++
	}
	if present != 1 {
		return AuthSourceNone, ErrAmbiguousAuthSource
	}

	if in.HasBearer {
		if in.PayloadHasPub || in.PayloadHasLink {
			return AuthSourceNone, ErrAmbiguousAuthSource
		}
		return AuthSourceBearer, nil
	}
	if in.PayloadHasPub {
		return AuthSourcePubKey, nil
	}
	return AuthSourceMagicLink, nil
}
