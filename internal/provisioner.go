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
	"path"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/kdomanski/iso9660"

	"github.com/jpoppe/seedbank/internal/config"
)

// ProvisionerBuilder contains the data and logic needed to create provisioners. Don't create
// instances of this type directly, use the NewProvisioner function instead.
type ProvisionerBuilder struct {
	logger     logr.Logger
	config     *config.Config
	tool       ExternalTool
	downloader *Downloader
}

// Provisioner downloads netboot images, installation ISOs and the bootloader files, and places them
// where the TFTP server can find them. It isn't safe to use it from multiple goroutines. Don't
// create instances of this type directly, use the NewProvisioner function instead.
type Provisioner struct {
	logger     logr.Logger
	config     config.Config
	downloader *Downloader
	extractor  *ArchiveExtractor
	debs       *DebExtractor
	patcher    *InitrdPatcher
	remover    *ReleaseRemover
}

// Files of the syslinux archive that are needed to boot from the network.
var bootloaderFiles = []string{
	"core/pxelinux.0",
	"com32/menu/menu.c32",
	"com32/menu/vesamenu.c32",
}

// Files of the netboot archive that are needed to start the installer.
var netbootFiles = []string{
	"initrd.gz",
	"linux",
}

// NewProvisioner creates a builder that can then be used to configure and create provisioners.
func NewProvisioner() *ProvisionerBuilder {
	return &ProvisionerBuilder{}
}

// SetLogger sets the logger that the provisioner will use to write log messages. This is
// mandatory.
func (b *ProvisionerBuilder) SetLogger(value logr.Logger) *ProvisionerBuilder {
	b.logger = value
	return b
}

// SetConfig sets the configuration. This is mandatory.
func (b *ProvisionerBuilder) SetConfig(value config.Config) *ProvisionerBuilder {
	b.config = &value
	return b
}

// SetTool sets the tool used to run external programs. This is optional, and by default the
// programs installed in the system will be used.
func (b *ProvisionerBuilder) SetTool(value ExternalTool) *ProvisionerBuilder {
	b.tool = value
	return b
}

// SetDownloader sets the downloader. This is optional, and by default a downloader with the
// default settings will be created.
func (b *ProvisionerBuilder) SetDownloader(value *Downloader) *ProvisionerBuilder {
	b.downloader = value
	return b
}

// Build uses the data stored in the builder to create and configure a new provisioner.
func (b *ProvisionerBuilder) Build() (result *Provisioner, err error) {
	// Check parameters:
	if b.logger.GetSink() == nil {
		err = errors.New("logger is mandatory")
		return
	}
	if b.config == nil {
		err = errors.New("configuration is mandatory")
		return
	}

	// Create the components:
	tool := b.tool
	if tool == nil {
		tool, err = NewCommandTool().
			SetLogger(b.logger).
			Build()
		if err != nil {
			err = fmt.Errorf("failed to create command tool: %w", err)
			return
		}
	}
	downloader := b.downloader
	if downloader == nil {
		downloader, err = NewDownloader().
			SetLogger(b.logger).
			Build()
		if err != nil {
			err = fmt.Errorf("failed to create downloader: %w", err)
			return
		}
	}
	extractor, err := NewArchiveExtractor().
		SetLogger(b.logger).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create archive extractor: %w", err)
		return
	}
	debs, err := NewDebExtractor().
		SetLogger(b.logger).
		SetTool(tool).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create package extractor: %w", err)
		return
	}
	patcher, err := NewInitrdPatcher().
		SetLogger(b.logger).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create initrd patcher: %w", err)
		return
	}
	remover, err := NewReleaseRemover().
		SetLogger(b.logger).
		SetConfig(*b.config).
		Build()
	if err != nil {
		err = fmt.Errorf("failed to create release remover: %w", err)
		return
	}

	// Create and populate the object:
	result = &Provisioner{
		logger:     b.logger,
		config:     *b.config,
		downloader: downloader,
		extractor:  extractor,
		debs:       debs,
		patcher:    patcher,
		remover:    remover,
	}
	return
}

// ProvisionBootloader downloads syslinux, copies the files needed for network boot to the TFTP
// directory and creates the default PXE configuration if it doesn't exist yet.
func (p *Provisioner) ProvisionBootloader(ctx context.Context) (err error) {
	workspace, err := p.createWorkspace()
	if err != nil {
		return
	}
	defer p.removeWorkspace(workspace)

	// Download the archive:
	src, err := p.config.ResolveURL(config.URLSyslinux, nil)
	if err != nil {
		return
	}
	name, err := urlBase(src)
	if err != nil {
		return
	}
	file := filepath.Join(p.config.Paths().Archives, "syslinux", name)
	_, err = p.downloader.Fetch(ctx, src, file)
	if err != nil {
		return
	}

	// Extract the files:
	err = p.extractor.Extract(ctx, Archive{
		File:        file,
		Prefix:      trimArchiveSuffix(name),
		Members:     bootloaderFiles,
		Destination: p.config.Paths().TFTPBoot,
		Flatten:     true,
	}, workspace.Sub("stage"))
	if err != nil {
		return
	}

	// Create the default configuration:
	err = p.createPXEDefault()
	return
}

// ProvisionNetboot downloads the netboot archive of the release, copies the kernel and the initrd
// to the TFTP directory and, if the configuration says so, adds the non free firmware to the
// initrd.
func (p *Provisioner) ProvisionNetboot(ctx context.Context, name string) (err error) {
	target, err := ParseNetbootTarget(name)
	if err != nil {
		return
	}
	workspace, err := p.createWorkspace()
	if err != nil {
		return
	}
	defer p.removeWorkspace(workspace)

	// Download the archive:
	src, err := p.config.ResolveURL(target.Distribution, target.Values())
	if err != nil {
		return
	}
	base, err := urlBase(src)
	if err != nil {
		return
	}
	file := filepath.Join(archiveDir(p.config, target.Name()), base)
	_, err = p.downloader.Fetch(ctx, src, file)
	if err != nil {
		return
	}

	// Extract the kernel and the initrd:
	dst := p.NetbootDir(target.Name())
	err = p.extractor.Extract(ctx, Archive{
		File:        file,
		Prefix:      fmt.Sprintf("./%s-installer/%s", target.Distribution, target.Architecture),
		Members:     netbootFiles,
		Destination: dst,
	}, workspace.Sub("stage"))
	if err != nil {
		return
	}
	p.logger.Info(
		"Installed netboot image",
		"release", target.Name(),
		"dir", dst,
	)

	// Add the firmware:
	if !p.config.FirmwareRequired(target.FirmwareKey()) {
		p.logger.V(1).Info(
			"Firmware isn't required",
			"release", target.Name(),
		)
		return
	}
	err = p.integrateFirmware(ctx, target, workspace)
	return
}

// ProvisionISO downloads the installation ISO of the release, unless it has already been
// downloaded.
func (p *Provisioner) ProvisionISO(ctx context.Context, name string) error {
	target, err := ParseISOTarget(name)
	if err != nil {
		return err
	}
	src, err := p.config.ResolveURL(config.URLDebianISO, target.Values())
	if err != nil {
		return err
	}
	dst := p.ISOFile(target.Name())
	downloaded, err := p.downloader.Fetch(ctx, src, dst)
	if err != nil {
		return err
	}
	if downloaded {
		p.inspectISO(dst)
	}
	return nil
}

// RemoveRelease removes the files of a netboot image or installation ISO. Names that aren't in the
// configuration are reported in the log but aren't an error.
func (p *Provisioner) RemoveRelease(ctx context.Context, name string) error {
	return p.remover.Remove(ctx, name)
}

// NetbootDir returns the directory where the files of the netboot release are installed.
func (p *Provisioner) NetbootDir(name string) string {
	return netbootDir(p.config, name)
}

// ISOFile returns the path of the file where the ISO release is stored.
func (p *Provisioner) ISOFile(name string) string {
	return isoFile(p.config, name)
}

func (p *Provisioner) integrateFirmware(ctx context.Context, target Target,
	workspace *Workspace) (err error) {
	// Download the archive:
	src, err := p.config.ResolveURL(config.URLDebianFirmware, target.Values())
	if err != nil {
		return
	}
	base, err := urlBase(src)
	if err != nil {
		return
	}
	file := filepath.Join(firmwareDir(p.config, target), base)
	_, err = p.downloader.Fetch(ctx, src, file)
	if err != nil {
		return
	}

	// Extract the packages:
	staging := workspace.Sub("firmware")
	err = staging.Reset()
	if err != nil {
		return
	}
	defer func() {
		resetErr := staging.Reset()
		if resetErr != nil && err == nil {
			err = resetErr
		}
	}()
	err = p.extractor.Unpack(ctx, file, staging.Dir())
	if err != nil {
		return
	}
	packages, err := p.debs.ExtractPackages(ctx, staging.Dir())
	if err != nil {
		return
	}

	// Patch the initrd:
	initrd := filepath.Join(p.NetbootDir(target.Name()), "initrd.gz")
	err = p.patcher.Patch(ctx, InitrdPatch{
		Initrd:          initrd,
		Firmware:        filepath.Join(packages, filepath.FromSlash(InitrdFirmwareDir)),
		StripUSBStorage: true,
	}, workspace.Sub("stage"))
	if err != nil {
		return
	}
	p.logger.Info(
		"Integrated firmware",
		"release", target.Name(),
		"initrd", initrd,
	)
	return
}

func (p *Provisioner) createPXEDefault() error {
	dir := filepath.Join(p.config.Paths().TFTPBoot, "pxelinux.cfg")
	dst := filepath.Join(dir, "default")
	exists, err := fileExists(dst)
	if err != nil {
		return err
	}
	if exists {
		p.logger.Info(
			"Default PXE configuration already exists",
			"file", dst,
		)
		return nil
	}
	err = createDir(dir)
	if err != nil {
		return err
	}
	src := filepath.Join(p.config.Paths().Templates, "pxe_default")
	exists, err = fileExists(src)
	if err != nil {
		return err
	}
	if exists {
		err = copyFile(src, dst)
	} else {
		var content []byte
		content, err = TemplatesFS.ReadFile("templates/pxe_default")
		if err == nil {
			err = os.WriteFile(dst, content, 0644)
		}
		src = "built in"
	}
	if err != nil {
		return fmt.Errorf("failed to create default PXE configuration '%s': %w", dst, err)
	}
	p.logger.Info(
		"Created default PXE configuration",
		"file", dst,
		"template", src,
	)
	return nil
}

func (p *Provisioner) inspectISO(file string) {
	reader, err := os.Open(file)
	if err != nil {
		p.logger.Error(err, "Failed to open ISO", "file", file)
		return
	}
	defer reader.Close() //nolint:errcheck
	image, err := iso9660.OpenImage(reader)
	if err != nil {
		p.logger.Error(err, "Downloaded file isn't a valid ISO image", "file", file)
		return
	}
	label, err := image.Label()
	if err != nil {
		p.logger.Error(err, "Failed to read ISO label", "file", file)
		return
	}
	p.logger.Info(
		"Downloaded ISO image",
		"file", file,
		"label", label,
	)
}

func (p *Provisioner) createWorkspace() (result *Workspace, err error) {
	result = NewWorkspace(p.config.Paths().Temp)
	err = result.Reset()
	if err != nil {
		return
	}
	p.logger.V(1).Info(
		"Created workspace",
		"dir", result.Dir(),
	)
	return
}

func (p *Provisioner) removeWorkspace(workspace *Workspace) {
	err := workspace.Remove()
	if err != nil {
		p.logger.Error(
			err,
			"Failed to remove workspace",
			"dir", workspace.Dir(),
		)
	}
}

func netbootDir(cfg config.Config, name string) string {
	return filepath.Join(cfg.Paths().TFTPBoot, "seedbank", name)
}

func archiveDir(cfg config.Config, name string) string {
	return filepath.Join(cfg.Paths().Archives, name)
}

func isoFile(cfg config.Config, name string) string {
	return filepath.Join(cfg.Paths().ISOs, name+".iso")
}

func firmwareDir(cfg config.Config, target Target) string {
	return filepath.Join(cfg.Paths().Archives, "firmware-"+target.FirmwareKey())
}

// urlBase returns the last element of the path of the URL.
func urlBase(src string) (result string, err error) {
	parsed, err := url.Parse(src)
	if err != nil {
		err = fmt.Errorf("failed to parse URL '%s': %w", src, err)
		return
	}
	result = path.Base(parsed.Path)
	if result == "." || result == "/" {
		err = fmt.Errorf("URL '%s' doesn't contain a file name", src)
	}
	return
}

// trimArchiveSuffix removes the tar suffixes from a file name, for example 'syslinux-6.03.tar.gz'
// becomes 'syslinux-6.03'.
func trimArchiveSuffix(name string) string {
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
