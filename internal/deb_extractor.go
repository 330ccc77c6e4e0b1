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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
)

// DebExtractorBuilder contains the data and logic needed to create Debian package extractors.
// Don't create instances of this type directly, use the NewDebExtractor function instead.
type DebExtractorBuilder struct {
	logger logr.Logger
	tool   ExternalTool
}

// DebExtractor extracts the contents of Debian packages using the 'dpkg' tool. Don't create
// instances of this type directly, use the NewDebExtractor function instead.
type DebExtractor struct {
	logger logr.Logger
	tool   ExternalTool
}

// DebExtractDir is the name of the subdirectory where the contents of the packages are extracted.
const DebExtractDir = "temp"

// NewDebExtractor creates a builder that can then be used to configure and create Debian package
// extractors.
func NewDebExtractor() *DebExtractorBuilder {
	return &DebExtractorBuilder{}
}

// SetLogger sets the logger that the extractor will use to write log messages. This is mandatory.
func (b *DebExtractorBuilder) SetLogger(value logr.Logger) *DebExtractorBuilder {
	b.logger = value
	return b
}

// SetTool sets the tool that will be used to run 'dpkg'. This is mandatory.
func (b *DebExtractorBuilder) SetTool(value ExternalTool) *DebExtractorBuilder {
	b.tool = value
	return b
}

// Build uses the data stored in the builder to create a new Debian package extractor.
func (b *DebExtractorBuilder) Build() (result *DebExtractor, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.tool == nil {
		err = errors.New("tool is mandatory")
		return
	}

	// Create and populate the object:
	result = &DebExtractor{
		logger: b.logger,
		tool:   b.tool,
	}
	return
}

// ExtractPackages extracts all the '.deb' files found in the directory into the DebExtractDir
// subdirectory of that same directory, and returns the path of that subdirectory. The first
// package that fails stops the process.
func (e *DebExtractor) ExtractPackages(ctx context.Context, dir string) (result string,
	err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".deb") {
			continue
		}
		var outcome ToolResult
		outcome, err = e.tool.Run(ctx, dir, "dpkg", "-x", entry.Name(), DebExtractDir)
		if err != nil {
			err = fmt.Errorf("failed to extract package '%s': %w", entry.Name(), err)
			return
		}
		if outcome.Code != 0 {
			err = fmt.Errorf(
				"%w: failed to extract package '%s', 'dpkg' exited with code %d: %s",
				ErrToolFailed, entry.Name(), outcome.Code,
				strings.TrimSpace(string(outcome.Stderr)),
			)
			return
		}
		count++
		e.logger.Info(
			"Extracted package",
			"package", entry.Name(),
		)
	}
	result = filepath.Join(dir, DebExtractDir)
	e.logger.V(1).Info(
		"Extracted packages",
		"dir", dir,
		"count", count,
	)
	return
}
