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

package config

import (
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// SubstituteEnvVars replaces $VAR and ${VAR} references with the current
// process environment, leaving unset variables as an empty string.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)
		if name[1] != "" {
			return os.Getenv(name[1])
		}
		return os.Getenv(name[2])
	})
}

// GetEnvironment returns the deployment environment name, defaulting to
// "development" when HASHRAND_ENV is unset.
func GetEnvironment() string {
	if env := os.Getenv("HASHRAND_ENV"); env != "" {
		return env
	}
	return "development"
}

// IsProduction reports whether the process is running in production.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether the process is running in development.
func IsDevelopment() bool {
	return GetEnvironment() == "development"
}
