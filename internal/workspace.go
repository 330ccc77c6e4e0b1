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
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a directory used to stage files while they are extracted or patched. It is owned
// by a single operation: two operations must never share the same workspace.
type Workspace struct {
	dir string
}

// NewWorkspace creates a workspace located in a directory with a unique name inside the given
// parent directory. The directory isn't created till the Reset method is called.
func NewWorkspace(parent string) *Workspace {
	return &Workspace{
		dir: filepath.Join(parent, fmt.Sprintf("seedbank-%s", uuid.NewString())),
	}
}

// Dir returns the directory of the workspace.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of a file or directory inside the workspace.
func (w *Workspace) Path(elems ...string) string {
	return filepath.Join(append([]string{w.dir}, elems...)...)
}

// Sub returns a workspace that uses a subdirectory of this one.
func (w *Workspace) Sub(name string) *Workspace {
	return &Workspace{
		dir: filepath.Join(w.dir, name),
	}
}

// Reset removes everything from the workspace and leaves it as an empty directory.
func (w *Workspace) Reset() error {
	err := os.RemoveAll(w.dir)
	if err != nil {
		return fmt.Errorf("failed to remove workspace '%s': %w", w.dir, err)
	}
	err = os.MkdirAll(w.dir, 0700)
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create workspace '%s': %w", w.dir, err)
	}
	return nil
}

// Remove deletes the workspace directory and all its contents.
func (w *Workspace) Remove() error {
	err := os.RemoveAll(w.dir)
	if err != nil {
		return fmt.Errorf("failed to remove workspace '%s': %w", w.dir, err)
	}
	return nil
}
