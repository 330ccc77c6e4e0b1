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

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"golang.org/x/term"
)

// ConsoleBuilder contains the data and logic needed to create a console. Don't create instances
// of this type directly, use the NewConsole function instead.
type ConsoleBuilder struct {
	logger logr.Logger
	file   *os.File
}

// Console writes friendly messages for humans. Messages are also sent to the log. Don't create
// instances of this type directly, use the NewConsole function instead.
type Console struct {
	logger logr.Logger
	writer io.Writer
	info   *color.Color
	warn   *color.Color
	error  *color.Color
}

// NewConsole creates a builder that can then be used to configure and create a console.
func NewConsole() *ConsoleBuilder {
	return &ConsoleBuilder{}
}

// SetLogger sets the logger that will receive a copy of the messages. This is mandatory.
func (b *ConsoleBuilder) SetLogger(value logr.Logger) *ConsoleBuilder {
	b.logger = value
	return b
}

// SetFile sets the file where the messages will be written. This is optional, and the default
// is the standard output. Colors are used only if this is a terminal and the NO_COLOR environment
// variable isn't set.
func (b *ConsoleBuilder) SetFile(value *os.File) *ConsoleBuilder {
	b.file = value
	return b
}

// Build uses the data stored in the builder to create a new console.
func (b *ConsoleBuilder) Build() (result *Console, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}
	file := b.file
	if file == nil {
		file = os.Stdout
	}

	// Colors are decided for the file that we write to, not for the standard output that the
	// color library checks by default:
	enabled := term.IsTerminal(int(file.Fd())) && os.Getenv("NO_COLOR") == ""
	info := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	failure := color.New(color.FgRed)
	for _, c := range []*color.Color{info, warn, failure} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	// Create and populate the object:
	result = &Console{
		logger: b.logger,
		writer: file,
		info:   info,
		warn:   warn,
		error:  failure,
	}
	return
}

// Info writes an informative message.
func (c *Console) Info(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.V(1).Info(text)
	c.info.Fprintln(c.writer, text)
}

// Warn writes a warning message.
func (c *Console) Warn(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.V(1).Info(text)
	c.warn.Fprintln(c.writer, text)
}

// Error writes an error message.
func (c *Console) Error(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.logger.V(1).Info(text)
	c.error.Fprintln(c.writer, text)
}
