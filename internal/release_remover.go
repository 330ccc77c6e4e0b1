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

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/jpoppe/seedbank/internal/config"
)

// ReleaseRemoverBuilder contains the data and logic needed to create release removers. Don't
// create instances of this type directly, use the NewReleaseRemover function instead.
type ReleaseRemoverBuilder struct {
	logger logr.Logger
	config *config.Config
}

// ReleaseRemover removes the files of installed releases. Don't create instances of this type
// directly, use the NewReleaseRemover function instead.
type ReleaseRemover struct {
	logger logr.Logger
	config config.Config
}

// NewReleaseRemover creates a builder that can then be used to configure and create release
// removers.
func NewReleaseRemover() *ReleaseRemoverBuilder {
	return &ReleaseRemoverBuilder{}
}

// SetLogger sets the logger that the remover will use to write log messages. This is mandatory.
func (b *ReleaseRemoverBuilder) SetLogger(value logr.Logger) *ReleaseRemoverBuilder {
	b.logger = value
	return b
}

// SetConfig sets the configuration that contains the known releases and the directories where
// they are installed. This is mandatory.
func (b *ReleaseRemoverBuilder) SetConfig(value config.Config) *ReleaseRemoverBuilder {
	b.config = &value
	return b
}

// Build uses the data stored in the builder to create a new release remover.
func (b *ReleaseRemoverBuilder) Build() (result *ReleaseRemover, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.config == nil {
		err = errors.New("configuration is mandatory")
		return
	}

	// Create and populate the object:
	result = &ReleaseRemover{
		logger: b.logger,
		config: *b.config,
	}
	return
}

// Remove removes the files of the given release. Files that don't exist are reported in the log
// and skipped. A release that isn't in the configuration is reported in the log and nothing is
// removed.
func (r *ReleaseRemover) Remove(ctx context.Context, name string) error {
	switch {
	case r.config.IsNetboot(name):
		return r.removeNetboot(ctx, name)
	case r.config.IsISO(name):
		return r.removeISO(ctx, name)
	default:
		r.logger.Error(
			nil,
			"Release has not been defined in settings",
			"release", name,
		)
		return nil
	}
}

func (r *ReleaseRemover) removeNetboot(ctx context.Context, name string) error {
	var result *multierror.Error

	// Remove the installed files:
	dir := netbootDir(r.config, name)
	removed, err := r.removeDir(dir)
	if err != nil {
		result = multierror.Append(result, err)
	} else if !removed {
		r.logger.Info(
			"Release has not been installed",
			"release", name,
			"dir", dir,
		)
	}

	// Remove the downloaded archive:
	dir = r.archiveDir(name)
	removed, err = r.removeDir(dir)
	if err != nil {
		result = multierror.Append(result, err)
	} else if !removed {
		r.logger.Info(
			"Release archive has not been downloaded",
			"release", name,
			"dir", dir,
		)
	}

	// Remove the firmware archive:
	target, err := ParseNetbootTarget(name)
	if err != nil {
		r.logger.Info(
			"Can't find firmware for release with unexpected name",
			"release", name,
			"error", err.Error(),
		)
		return result.ErrorOrNil()
	}
	dir = firmwareDir(r.config, target)
	removed, err = r.removeDir(dir)
	if err != nil {
		result = multierror.Append(result, err)
	} else if !removed {
		r.logger.Info(
			"Firmware not found, nothing to do",
			"release", name,
			"dir", dir,
		)
	}

	return result.ErrorOrNil()
}

func (r *ReleaseRemover) removeISO(ctx context.Context, name string) error {
	file := isoFile(r.config, name)
	err := os.Remove(file)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Info(
			"Release has not been installed",
			"release", name,
			"file", file,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove ISO '%s': %w", file, err)
	}
	r.logger.Info(
		"Removed ISO",
		"release", name,
		"file", file,
	)
	return nil
}

func (r *ReleaseRemover) archiveDir(name string) string {
	return archiveDir(r.config, name)
}

// removeDir removes the directory and all its contents. The returned flag is false if the
// directory didn't exist.
func (r *ReleaseRemover) removeDir(dir string) (removed bool, err error) {
	_, err = os.Lstat(dir)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	err = os.RemoveAll(dir)
	if err != nil {
		err = fmt.Errorf("failed to remove directory '%s': %w", dir, err)
		return
	}
	removed = true
	r.logger.Info(
		"Removed directory",
		"dir", dir,
	)
	return
}
