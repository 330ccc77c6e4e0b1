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
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	getter "github.com/hashicorp/go-getter/v2"
)

// DownloaderBuilder contains the data and logic needed to create downloaders. Don't create
// instances of this type directly, use the NewDownloader function instead.
type DownloaderBuilder struct {
	logger  logr.Logger
	timeout time.Duration
}

// Downloader fetches remote files. Files that already exist locally aren't downloaded again.
// Don't create instances of this type directly, use the NewDownloader function instead.
type Downloader struct {
	logger logr.Logger
	client *getter.Client
}

// NewDownloader creates a builder that can then be used to configure and create downloaders.
func NewDownloader() *DownloaderBuilder {
	return &DownloaderBuilder{
		timeout: 30 * time.Minute,
	}
}

// SetLogger sets the logger that the downloader will use to write log messages. This is
// mandatory.
func (b *DownloaderBuilder) SetLogger(value logr.Logger) *DownloaderBuilder {
	b.logger = value
	return b
}

// SetTimeout sets the maximum time that the downloader will wait for the server to send data.
// This is optional and the default is thirty minutes.
func (b *DownloaderBuilder) SetTimeout(value time.Duration) *DownloaderBuilder {
	b.timeout = value
	return b
}

// Build uses the data stored in the builder to create a new downloader.
func (b *DownloaderBuilder) Build() (result *Downloader, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.timeout <= 0 {
		err = fmt.Errorf("timeout should be positive, but it is %s", b.timeout)
		return
	}

	// Create the client:
	client := &getter.Client{
		Getters: []getter.Getter{
			&getter.HttpGetter{
				HeadFirstTimeout: b.timeout,
				ReadTimeout:      b.timeout,
			},
		},
	}

	// Create and populate the object:
	result = &Downloader{
		logger: b.logger,
		client: client,
	}
	return
}

// Fetch downloads the file from the source URL to the destination path. If the destination
// already exists nothing is downloaded and the returned flag is false.
func (d *Downloader) Fetch(ctx context.Context, src, dst string) (downloaded bool, err error) {
	exists, err := fileExists(dst)
	if err != nil {
		return
	}
	if exists {
		d.logger.Info(
			"File already exists, download skipped",
			"file", dst,
		)
		return
	}
	err = createDir(filepath.Dir(dst))
	if err != nil {
		err = fmt.Errorf("failed to create directory for '%s': %w", dst, err)
		return
	}

	// The getter would otherwise try to decompress archives, but we want them exactly as they
	// are in the server:
	srcURL, err := url.Parse(src)
	if err != nil {
		err = fmt.Errorf("failed to parse URL '%s': %w", src, err)
		return
	}
	query := srcURL.Query()
	query.Set("archive", "false")
	srcURL.RawQuery = query.Encode()

	// Download to a temporary file and rename it only when complete, so that an interrupted
	// download will not be considered an existing file in the next run:
	dst, err = filepath.Abs(dst)
	if err != nil {
		return
	}
	tmp := dst + ".part"
	err = os.Remove(tmp)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return
	}
	d.logger.Info(
		"Downloading file",
		"url", src,
		"file", dst,
	)
	_, err = d.client.Get(ctx, &getter.Request{
		Src:     srcURL.String(),
		Dst:     tmp,
		GetMode: getter.ModeFile,
	})
	if err != nil {
		os.Remove(tmp) //nolint:errcheck
		err = fmt.Errorf("failed to download '%s': %w", src, err)
		return
	}
	err = os.Rename(tmp, dst)
	if err != nil {
		os.Remove(tmp) //nolint:errcheck
		return
	}
	downloaded = true
	if info, statErr := os.Stat(dst); statErr == nil {
		d.logger.Info(
			"Downloaded file",
			"url", src,
			"file", dst,
			"size", humanize.Bytes(uint64(info.Size())),
		)
	}
	return
}
