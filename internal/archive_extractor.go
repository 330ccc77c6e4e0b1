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
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
)

// Archive describes a set of files that should be extracted from a tar archive, optionally
// compressed with gzip or xz.
type Archive struct {
	// File is the local path of the archive.
	File string

	// Prefix is the directory inside the archive that contains the members. It is removed from
	// the names of the extracted files.
	Prefix string

	// Members are the names, relative to the prefix, of the files or directories to extract.
	Members []string

	// Destination is the directory where the extracted files will be copied.
	Destination string

	// Flatten indicates that files should be copied directly into the destination directory,
	// discarding the directories they were in inside the archive.
	Flatten bool
}

// ErrMemberNotFound is returned when one of the requested members isn't part of the archive.
var ErrMemberNotFound = errors.New("archive member not found")

// ArchiveExtractorBuilder contains the data and logic needed to create archive extractors. Don't
// create instances of this type directly, use the NewArchiveExtractor function instead.
type ArchiveExtractorBuilder struct {
	logger logr.Logger
}

// ArchiveExtractor extracts selected files from tar archives. Don't create instances of this type
// directly, use the NewArchiveExtractor function instead.
type ArchiveExtractor struct {
	logger logr.Logger
}

// NewArchiveExtractor creates a builder that can then be used to configure and create archive
// extractors.
func NewArchiveExtractor() *ArchiveExtractorBuilder {
	return &ArchiveExtractorBuilder{}
}

// SetLogger sets the logger that the extractor will use to write log messages. This is mandatory.
func (b *ArchiveExtractorBuilder) SetLogger(value logr.Logger) *ArchiveExtractorBuilder {
	b.logger = value
	return b
}

// Build uses the data stored in the builder to create a new archive extractor.
func (b *ArchiveExtractorBuilder) Build() (result *ArchiveExtractor, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}

	// Create and populate the object:
	result = &ArchiveExtractor{
		logger: b.logger,
	}
	return
}

// Extract stages the requested members of the archive in the workspace and then copies them to
// the destination directory. The workspace is emptied before and after, even if the extraction
// fails. If any of the members isn't in the archive nothing is copied and the error wraps
// ErrMemberNotFound.
func (e *ArchiveExtractor) Extract(ctx context.Context, archive Archive, workspace *Workspace) (
	err error) {
	// Check parameters:
	if len(archive.Members) == 0 {
		err = errors.New("at least one member is required")
		return
	}
	if archive.Destination == "" {
		err = errors.New("destination is mandatory")
		return
	}

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

	// Stage the selected members:
	prefix := cleanMemberName(archive.Prefix)
	selected := map[string]bool{}
	for _, member := range archive.Members {
		selected[path.Join(prefix, cleanMemberName(member))] = false
	}
	err = e.walk(ctx, archive.File, func(header *tar.Header, reader io.Reader) error {
		name := cleanMemberName(header.Name)
		wanted := matchMember(name, selected)
		if wanted == "" {
			return nil
		}
		selected[wanted] = true
		return writeMember(
			workspace.Dir(),
			stripPrefix(name, prefix),
			header,
			reader,
			stripPrefix(cleanMemberName(header.Linkname), prefix),
		)
	})
	if err != nil {
		return
	}
	var missing []string
	for _, member := range archive.Members {
		if !selected[path.Join(prefix, cleanMemberName(member))] {
			missing = append(missing, member)
		}
	}
	if len(missing) > 0 {
		err = fmt.Errorf(
			"%w: '%s' doesn't contain %s in '%s'",
			ErrMemberNotFound, archive.File, strings.Join(missing, ", "), archive.Prefix,
		)
		return
	}

	// Copy the staged files to the destination:
	files, err := findFiles(workspace.Dir())
	if err != nil {
		return
	}
	err = createDir(archive.Destination)
	if err != nil {
		return
	}
	for _, file := range files {
		dst := filepath.Join(archive.Destination, file)
		if archive.Flatten {
			dst = filepath.Join(archive.Destination, filepath.Base(file))
		}
		err = copyFile(workspace.Path(file), dst)
		if err != nil {
			err = fmt.Errorf("failed to copy '%s' to '%s': %w", file, dst, err)
			return
		}
		e.logger.V(1).Info(
			"Copied file",
			"file", dst,
		)
	}
	e.logger.Info(
		"Extracted archive",
		"archive", archive.File,
		"members", archive.Members,
		"destination", archive.Destination,
		"files", len(files),
	)
	return
}

// Unpack extracts all the contents of the archive into the given directory.
func (e *ArchiveExtractor) Unpack(ctx context.Context, file, dir string) error {
	err := createDir(dir)
	if err != nil {
		return err
	}
	count := 0
	err = e.walk(ctx, file, func(header *tar.Header, reader io.Reader) error {
		count++
		return writeMember(
			dir,
			cleanMemberName(header.Name),
			header,
			reader,
			cleanMemberName(header.Linkname),
		)
	})
	if err != nil {
		return err
	}
	e.logger.Info(
		"Unpacked archive",
		"archive", file,
		"dir", dir,
		"members", count,
	)
	return nil
}

func (e *ArchiveExtractor) walk(ctx context.Context, file string,
	visit func(*tar.Header, io.Reader) error) error {
	reader, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		err := reader.Close()
		if err != nil {
			e.logger.Error(
				err,
				"Failed to close archive",
				"file", file,
			)
		}
	}()
	decompressed, compression, err := decompress(reader)
	if err != nil {
		return fmt.Errorf("failed to open archive '%s': %w", file, err)
	}
	defer decompressed.Close() //nolint:errcheck
	e.logger.V(1).Info(
		"Reading archive",
		"file", file,
		"compression", compression,
	)
	tarReader := tar.NewReader(decompressed)
	for {
		err = ctx.Err()
		if err != nil {
			return err
		}
		var header *tar.Header
		header, err = tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive '%s': %w", file, err)
		}
		err = visit(header, tarReader)
		if err != nil {
			return err
		}
	}
}

// matchMember returns the selected name that matches the archive member, either because it is
// the same or because the selected name is a directory containing it. Returns an empty string if
// there is no match.
func matchMember(name string, selected map[string]bool) string {
	for wanted := range selected {
		if name == wanted || strings.HasPrefix(name, wanted+"/") {
			return wanted
		}
	}
	return ""
}

func cleanMemberName(name string) string {
	return path.Clean(strings.TrimLeft(name, "/"))
}

// stripPrefix returns the name relative to the prefix. Names outside of the prefix are returned
// unchanged.
func stripPrefix(name, prefix string) string {
	if prefix == "." {
		return name
	}
	if name == prefix {
		return "."
	}
	return strings.TrimPrefix(name, prefix+"/")
}

func writeMember(root, rel string, header *tar.Header, reader io.Reader, link string) error {
	if rel == "." {
		return nil
	}
	target, err := securePath(root, rel)
	if err != nil {
		return fmt.Errorf("archive member '%s' rejected: %w", header.Name, err)
	}
	err = removeLink(target)
	if err != nil {
		return err
	}
	mode := os.FileMode(header.Mode).Perm()
	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0700)
	case tar.TypeReg:
		err = createDir(filepath.Dir(target))
		if err != nil {
			return err
		}
		writer, err := os.OpenFile(
			target,
			os.O_WRONLY|os.O_CREATE|os.O_TRUNC|syscall.O_NOFOLLOW,
			mode,
		)
		if err != nil {
			return err
		}
		_, err = io.Copy(writer, reader)
		if err != nil {
			writer.Close() //nolint:errcheck
			return err
		}
		return writer.Close()
	case tar.TypeSymlink:
		err = createDir(filepath.Dir(target))
		if err != nil {
			return err
		}
		return os.Symlink(header.Linkname, target)
	case tar.TypeLink:
		source, err := securePath(root, link)
		if err != nil {
			return fmt.Errorf("archive link '%s' rejected: %w", header.Linkname, err)
		}
		err = createDir(filepath.Dir(target))
		if err != nil {
			return err
		}
		return os.Link(source, target)
	default:
		// Devices, fifos and other special files aren't needed.
		return nil
	}
}

// securePath returns the location of the relative path inside the root directory. It fails if the
// path goes outside of the root, either with parent references or through a symbolic link created
// by a previous entry. The last element isn't checked, use removeLink for that.
func securePath(root, rel string) (result string, err error) {
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		err = fmt.Errorf("path '%s' is outside of '%s'", rel, root)
		return
	}
	current := root
	elems := strings.Split(rel, "/")
	for i, elem := range elems[:len(elems)-1] {
		current = filepath.Join(current, elem)
		var info os.FileInfo
		info, err = os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			err = nil
			break
		}
		if err != nil {
			return
		}
		if info.Mode()&os.ModeSymlink != 0 {
			err = fmt.Errorf(
				"path '%s' goes through symbolic link '%s'",
				rel, path.Join(elems[:i+1]...),
			)
			return
		}
	}
	result = filepath.Join(root, filepath.FromSlash(rel))
	return
}

// removeLink removes the file if it is a symbolic link, so that it is replaced instead of
// followed.
func removeLink(file string) error {
	info, err := os.Lstat(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(file)
}
