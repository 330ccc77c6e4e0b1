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
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/u-root/u-root/pkg/cpio"
	"golang.org/x/sys/unix"
)

// USBStorageDriversPath is the fragment of path that identifies the directories containing the USB
// mass storage drivers inside an initrd image. Those drivers make the Debian installer fail with a
// 'root partition not found' error on some machines, so they are removed.
const USBStorageDriversPath = "kernel/drivers/usb/storage"

// InitrdFirmwareDir is the directory, relative to the root of the initrd image, where firmware
// files are merged.
const InitrdFirmwareDir = "lib/firmware"

// InitrdPatch describes the changes that should be applied to an initrd image.
type InitrdPatch struct {
	// Initrd is the path of the image. It will be replaced by the patched one.
	Initrd string

	// Firmware is the directory containing the firmware files that will be merged into the
	// InitrdFirmwareDir directory of the image. This is optional.
	Firmware string

	// StripUSBStorage indicates if the USB mass storage drivers should be removed.
	StripUSBStorage bool
}

// InitrdPatcherBuilder contains the data and logic needed to create initrd patchers. Don't create
// instances of this type directly, use the NewInitrdPatcher function instead.
type InitrdPatcherBuilder struct {
	logger logr.Logger
}

// InitrdPatcher unpacks initrd images, modifies their contents and packs them again. Don't create
// instances of this type directly, use the NewInitrdPatcher function instead.
type InitrdPatcher struct {
	logger logr.Logger
}

// NewInitrdPatcher creates a builder that can then be used to configure and create initrd
// patchers.
func NewInitrdPatcher() *InitrdPatcherBuilder {
	return &InitrdPatcherBuilder{}
}

// SetLogger sets the logger that the patcher will use to write log messages. This is mandatory.
func (b *InitrdPatcherBuilder) SetLogger(value logr.Logger) *InitrdPatcherBuilder {
	b.logger = value
	return b
}

// Build uses the data stored in the builder to create a new initrd patcher.
func (b *InitrdPatcherBuilder) Build() (result *InitrdPatcher, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &InitrdPatcher{
		logger: b.logger,
	}
	return
}

// Patch unpacks the image into the workspace, applies the changes and packs it again with the
// same compression that it had. The workspace is emptied before and after. There is no rollback:
// if this fails before the image is packed the image isn't modified, but if it fails while packing
// it may be left incomplete and the whole patch needs to be applied again.
func (p *InitrdPatcher) Patch(ctx context.Context, patch InitrdPatch, workspace *Workspace) (
	err error) {
	// Start and finish with an empty workspace:
	err = workspace.Reset()
	if err != nil {
		return
	}
	defer func() {
		resetErr := workspace.Reset()
		if resetErr != nil && err == nil {
			err = resetErr
		}
	}()

	// Unpack:
	compression, err := p.Unpack(ctx, patch.Initrd, workspace.Dir())
	if err != nil {
		return
	}
	times, err := dirModTimes(workspace.Dir())
	if err != nil {
		return
	}

	// Merge the firmware:
	if patch.Firmware != "" {
		err = p.MergeFirmware(patch.Firmware, workspace.Dir())
		if err != nil {
			return
		}
	}

	// Remove the drivers:
	if patch.StripUSBStorage {
		_, err = p.StripUSBStorage(workspace.Dir())
		if err != nil {
			return
		}
	}

	// Adding and removing files changes the times of the directories, put back the ones that
	// came with the image so that the result only depends on the content:
	err = restoreDirModTimes(workspace.Dir(), times)
	if err != nil {
		return
	}

	// Pack:
	err = p.Pack(ctx, workspace.Dir(), patch.Initrd, compression)
	return
}

// Unpack extracts the contents of the initrd image into the given directory and returns the
// compression that the image uses.
func (p *InitrdPatcher) Unpack(ctx context.Context, initrd, dir string) (
	compression Compression, err error) {
	file, err := os.Open(initrd)
	if err != nil {
		err = fmt.Errorf("failed to open initrd '%s': %w", initrd, err)
		return
	}
	defer file.Close() //nolint:errcheck
	decompressed, compression, err := decompress(file)
	if err != nil {
		err = fmt.Errorf("failed to open initrd '%s': %w", initrd, err)
		return
	}
	defer decompressed.Close() //nolint:errcheck

	// The cpio reader needs random access, so the decompressed image is loaded in memory:
	data, err := io.ReadAll(decompressed)
	if err != nil {
		err = fmt.Errorf("failed to decompress initrd '%s': %w", initrd, err)
		return
	}
	err = createDir(dir)
	if err != nil {
		return
	}
	count := 0
	var dirs []cpio.Record
	reader := cpio.Newc.Reader(bytes.NewReader(data))
	err = cpio.ForEachRecord(reader, func(record cpio.Record) error {
		err := ctx.Err()
		if err != nil {
			return err
		}
		name := path.Clean(strings.TrimLeft(record.Name, "/"))
		if name == "." {
			return nil
		}
		target, err := securePath(dir, name)
		if err != nil {
			return fmt.Errorf("initrd entry '%s' rejected: %w", record.Name, err)
		}
		err = removeLink(target)
		if err != nil {
			return err
		}
		record.Name = name
		count++
		err = cpio.CreateFileInRoot(record, dir, false)
		if err != nil {
			return err
		}

		// Directories get their times when all the files have been created, as creating the
		// files changes them:
		if record.Mode&cpio.S_IFMT == cpio.S_IFDIR {
			dirs = append(dirs, record)
			return nil
		}
		err = setModTime(target, time.Unix(int64(record.MTime), 0))
		if errors.Is(err, os.ErrNotExist) {
			// Device files can't be created without privileges.
			return nil
		}
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed to unpack initrd '%s': %w", initrd, err)
		return
	}
	times := map[string]time.Time{}
	for _, record := range dirs {
		times[filepath.FromSlash(record.Name)] = time.Unix(int64(record.MTime), 0)
	}
	err = setDirModTimes(dir, times)
	if err != nil {
		err = fmt.Errorf("failed to unpack initrd '%s': %w", initrd, err)
		return
	}
	p.logger.Info(
		"Unpacked initrd",
		"initrd", initrd,
		"dir", dir,
		"compression", compression,
		"entries", count,
	)
	return
}

// MergeFirmware moves the firmware files from the source directory into the firmware directory of
// the unpacked initrd image, replacing files that already exist.
func (p *InitrdPatcher) MergeFirmware(src, dir string) error {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("firmware directory '%s' doesn't exist", src)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("firmware path '%s' isn't a directory", src)
	}
	dst := filepath.Join(dir, filepath.FromSlash(InitrdFirmwareDir))
	err = moveTree(src, dst)
	if err != nil {
		return fmt.Errorf("failed to move firmware from '%s' to '%s': %w", src, dst, err)
	}
	p.logger.Info(
		"Merged firmware into initrd",
		"src", src,
		"dst", dst,
	)
	return nil
}

// StripUSBStorage removes from the unpacked initrd image all the directories whose path contains
// USBStorageDriversPath, and returns the relative paths of the removed directories.
func (p *InitrdPatcher) StripUSBStorage(dir string) (removed []string, err error) {
	err = filepath.WalkDir(dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		if !strings.Contains(filepath.ToSlash(rel), USBStorageDriversPath) {
			return nil
		}
		removed = append(removed, rel)
		return fs.SkipDir
	})
	if err != nil {
		return
	}
	for _, rel := range removed {
		err = os.RemoveAll(filepath.Join(dir, rel))
		if err != nil {
			return
		}
	}
	if len(removed) > 0 {
		p.logger.Info(
			"USB storage support has been disabled in the initrd image, this fixes the "+
				"'root partition not found' error",
			"dirs", removed,
		)
	}
	return
}

// Pack creates the initrd image from the contents of the directory, replacing the previous image.
func (p *InitrdPatcher) Pack(ctx context.Context, dir, initrd string,
	compression Compression) (err error) {
	tmp := initrd + ".new"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			file.Close()   //nolint:errcheck
			os.Remove(tmp) //nolint:errcheck
		}
	}()
	compressor, err := compress(file, compression)
	if err != nil {
		return
	}
	writer := cpio.Newc.Writer(compressor)
	recorder := cpio.NewRecorder()
	count := 0
	err = filepath.WalkDir(dir, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		err = ctx.Err()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		record, err := recorder.GetRecord(name)
		if err != nil {
			return err
		}
		record.Name = filepath.ToSlash(rel)

		// Load the content of regular files now, so that we don't keep open a descriptor per
		// file till the archive is complete:
		if entry.Type().IsRegular() {
			var content []byte
			if record.FileSize > 0 {
				content, err = os.ReadFile(name)
				if err != nil {
					return err
				}
			}
			record.ReaderAt = bytes.NewReader(content)
		}
		count++
		return writer.WriteRecord(record)
	})
	if err != nil {
		err = fmt.Errorf("failed to pack initrd '%s': %w", initrd, err)
		return
	}
	err = cpio.WriteTrailer(writer)
	if err != nil {
		return
	}
	err = compressor.Close()
	if err != nil {
		return
	}
	err = file.Close()
	if err != nil {
		return
	}
	err = os.Rename(tmp, initrd)
	if err != nil {
		return
	}
	p.logger.Info(
		"Packed initrd",
		"initrd", initrd,
		"dir", dir,
		"compression", compression,
		"entries", count,
	)
	return
}

// dirModTimes returns the modification times of the directories inside the given directory,
// indexed by relative path.
func dirModTimes(dir string) (result map[string]time.Time, err error) {
	result = map[string]time.Time{}
	err = filepath.WalkDir(dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() || file == dir {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		result[rel] = info.ModTime()
		return nil
	})
	return
}

// setDirModTimes sets the modification times of all the directories inside the given directory.
// Those that don't have a time in the map, because the image contains the files but not the
// directory itself, get the zero Unix time.
func setDirModTimes(dir string, times map[string]time.Time) error {
	return filepath.WalkDir(dir, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() || file == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		mtime, ok := times[rel]
		if !ok {
			mtime = time.Unix(0, 0)
		}
		return setModTime(file, mtime)
	})
}

// restoreDirModTimes sets the modification times saved by dirModTimes. Directories that no longer
// exist are ignored.
func restoreDirModTimes(dir string, times map[string]time.Time) error {
	for rel, mtime := range times {
		err := setModTime(filepath.Join(dir, rel), mtime)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// setModTime sets the access and modification times of the file. Symbolic links are changed
// themselves, not followed.
func setModTime(file string, mtime time.Time) error {
	tv := unix.NsecToTimeval(mtime.UnixNano())
	err := unix.Lutimes(file, []unix.Timeval{tv, tv})
	if err != nil {
		return &os.PathError{Op: "lutimes", Path: file, Err: err}
	}
	return nil
}
