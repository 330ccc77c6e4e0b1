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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/go-logr/logr"
)

// ExternalTool runs external programs. The first argument is the name of the program, the rest
// are the arguments passed to it. A program that runs and exits with a non zero code isn't an
// error for this interface: the code is returned in the result and the caller decides.
type ExternalTool interface {
	Run(ctx context.Context, dir string, args ...string) (result ToolResult, err error)
}

// ToolResult contains the outcome of running an external program.
type ToolResult struct {
	Code   int
	Stdout []byte
	Stderr []byte
}

// ErrToolFailed is returned by the components when an external program finished with a non zero
// exit code.
var ErrToolFailed = errors.New("external tool failed")

// CommandToolBuilder contains the data and logic needed to create the tool that runs programs
// installed in the system. Don't create instances of this type directly, use the NewCommandTool
// function instead.
type CommandToolBuilder struct {
	logger logr.Logger
}

// CommandTool runs programs installed in the system, looking them up in the PATH. Don't create
// instances of this type directly, use the NewCommandTool function instead.
type CommandTool struct {
	logger logr.Logger
}

// NewCommandTool creates a builder that can then be used to configure and create a command tool.
func NewCommandTool() *CommandToolBuilder {
	return &CommandToolBuilder{}
}

// SetLogger sets the logger that the tool will use to write log messages. This is mandatory.
func (b *CommandToolBuilder) SetLogger(value logr.Logger) *CommandToolBuilder {
	b.logger = value
	return b
}

// Build uses the data stored in the builder to create a new command tool.
func (b *CommandToolBuilder) Build() (result *CommandTool, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &CommandTool{
		logger: b.logger,
	}
	return
}

// Run runs the program in the given directory and waits for it to finish.
func (t *CommandTool) Run(ctx context.Context, dir string, args ...string) (result ToolResult,
	err error) {
	if len(args) == 0 {
		err = errors.New("program name is mandatory")
		return
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		err = fmt.Errorf("failed to find '%s': %w", args[0], err)
		return
	}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, path, args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err = cmd.Run()
	result = ToolResult{
		Code:   cmd.ProcessState.ExitCode(),
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	t.logger.Info(
		fmt.Sprintf("Executed '%s' command", args[0]),
		"args", args,
		"dir", dir,
		"stdout", stdout.String(),
		"stderr", stderr.String(),
		"code", result.Code,
	)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	return
}
