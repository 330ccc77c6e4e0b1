/*
Copyright 2023 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in
compliance with the License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is
distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing permissions and limitations under the
License.
*/

package internal

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/jpoppe/seedbank/internal/config"
)

type contextKey int

const (
	loggerKey contextKey = iota
	consoleKey
	configKey
)

// ContextWithLogger creates a new context containing the given logger.
func ContextWithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger from the context. It panics if the context doesn't contain
// a logger.
func LoggerFromContext(ctx context.Context) logr.Logger {
	return ctx.Value(loggerKey).(logr.Logger)
}

// ContextWithConsole creates a new context containing the given console.
func ContextWithConsole(ctx context.Context, console *Console) context.Context {
	return context.WithValue(ctx, consoleKey, console)
}

// ConsoleFromContext returns the console from the context. It panics if the context doesn't
// contain a console.
func ConsoleFromContext(ctx context.Context) *Console {
	return ctx.Value(consoleKey).(*Console)
}

// ContextWithConfig creates a new context containing the given configuration.
func ContextWithConfig(ctx context.Context, cfg config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext returns the configuration from the context. It panics if the context doesn't
// contain a configuration.
func ConfigFromContext(ctx context.Context) config.Config {
	return ctx.Value(configKey).(config.Config)
}
