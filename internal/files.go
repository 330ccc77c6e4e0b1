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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/siderolabs/go-copy/copy"
)

// findFiles returns the paths, relative to the root directory, of all the regular files inside
// that directory, at any depth. The result is computed again on each call.
func findFiles(root string) (result []string, err error) {
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		result = append(result, rel)
		return nil
	})
	return
}

// createDir creates the directory and its parents, ignoring the error if it already exists.
func createDir(dir string) error {
	err := os.MkdirAll(dir, 0755)
	if errors.Is(err, os.ErrExist) {
		err = nil
	}
	return err
}

// copyFile copies a regular file, replacing the destination if it exists and creating the
// parent directories of the destination if needed.
func copyFile(src, dst string) error {
	err := createDir(filepath.Dir(dst))
	if err != nil {
		return err
	}
	return copy.File(src, dst)
}

// moveTree moves the contents of the source directory into the destination directory, merging
// them with whatever the destination already contains. Files that exist in both places are
// replaced. The source directory is removed when everything has been moved.
func moveTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("'%s' isn't a directory", src)
	}
	created, err := missingDirs(dst)
	if err != nil {
		return err
	}
	err = os.MkdirAll(dst, info.Mode().Perm())
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		switch {
		case entry.IsDir():
			err = moveTree(srcPath, dstPath)
		case entry.Type()&fs.ModeSymlink != 0:
			err = moveLink(srcPath, dstPath)
		default:
			err = moveFile(srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}

	// Directories created here get the time of the source, so that the result doesn't depend
	// on when it was moved:
	for _, dir := range created {
		err = setModTime(dir, info.ModTime())
		if err != nil {
			return err
		}
	}
	return os.Remove(src)
}

// missingDirs returns the given directory and those of its parents that don't exist yet.
func missingDirs(dir string) (result []string, err error) {
	for {
		_, err = os.Lstat(dir)
		if err == nil {
			return
		}
		if !errors.Is(err, os.ErrNotExist) {
			return
		}
		err = nil
		result = append(result, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	// Rename fails when the source and the destination are in different file systems, in that
	// case we need to copy and then remove.
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	err = copyFile(src, dst)
	if err != nil {
		return err
	}
	err = setModTime(dst, info.ModTime())
	if err != nil {
		return err
	}
	return os.Remove(src)
}

func moveLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	err = os.Remove(dst)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	err = os.Symlink(target, dst)
	if err != nil {
		return err
	}
	return os.Remove(src)
}

// fileExists checks if the given path exists and is a regular file.
func fileExists(path string) (exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
		return
	}
	if err != nil {
		return
	}
	exists = info.Mode().IsRegular()
	return
}
