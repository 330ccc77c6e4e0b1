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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerBuilder contains the data and logic needed to create loggers. Don't create instances of
// this type directly, use the NewLogger function instead.
type LoggerBuilder struct {
	writer io.Writer
	level  string
}

// NewLogger creates a builder that can then be used to configure and create a logger.
func NewLogger() *LoggerBuilder {
	return &LoggerBuilder{
		level: "info",
	}
}

// SetWriter sets the writer that the logger will write to. This is optional, and the default is
// to write to the standard error stream.
func (b *LoggerBuilder) SetWriter(value io.Writer) *LoggerBuilder {
	b.writer = value
	return b
}

// SetLevel sets the minimum level of the messages that will be written, one of 'debug', 'info',
// 'warn' or 'error'. This is optional, and the default is 'info'.
func (b *LoggerBuilder) SetLevel(value string) *LoggerBuilder {
	b.level = value
	return b
}

// Build uses the data stored in the builder to create a new logger.
func (b *LoggerBuilder) Build() (result logr.Logger, err error) {
	// Check parameters:
	if b.level == "" {
		err = errors.New("level is mandatory")
		return
	}
	level, err := zapcore.ParseLevel(b.level)
	if err != nil {
		err = fmt.Errorf("failed to parse log level '%s': %w", b.level, err)
		return
	}
	writer := b.writer
	if writer == nil {
		writer = os.Stderr
	}

	// Create the zap logger:
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(writer),
		zap.NewAtomicLevelAt(level),
	)
	logger := zap.New(core, zap.AddCaller())

	// Wrap it so that the rest of the code only depends on logr:
	result = zapr.NewLogger(logger)
	return
}
