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

// Package config contains the settings of the tool: the filesystem locations it manages, the
// templates of the URLs it downloads from and the sets of releases it knows about.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Paths contains the directories used by the tool.
type Paths struct {
	Temp      string `yaml:"temp" mapstructure:"temp"`
	Archives  string `yaml:"archives" mapstructure:"archives"`
	TFTPBoot  string `yaml:"tftpboot" mapstructure:"tftpboot"`
	ISOs      string `yaml:"isos" mapstructure:"isos"`
	Templates string `yaml:"templates" mapstructure:"templates"`
}

// Distributions contains the names of the releases that the tool knows how to handle.
type Distributions struct {
	Netboots  []string `yaml:"netboots" mapstructure:"netboots"`
	ISOs      []string `yaml:"isos" mapstructure:"isos"`
	Firmwares []string `yaml:"firmwares" mapstructure:"firmwares"`
}

// Settings is the raw form of the configuration file. Use the Load or New functions to convert it
// into a validated Config.
type Settings struct {
	Paths         Paths             `yaml:"paths" mapstructure:"paths"`
	URLs          map[string]string `yaml:"urls" mapstructure:"urls"`
	Distributions Distributions     `yaml:"distributions" mapstructure:"distributions"`
}

// Config is the validated configuration. It is created once when the program starts and then
// passed to the components that need it. It can't be modified after creation.
type Config struct {
	paths     Paths
	urls      map[string]string
	netboots  map[string]struct{}
	isos      map[string]struct{}
	firmwares map[string]struct{}
}

// Well known keys of the URLs section.
const (
	URLDebianISO      = "debian_iso"
	URLDebianFirmware = "debian_firmware"
	URLSyslinux       = "syslinux"
)

// ErrUnresolvedPlaceholder is returned when a URL template still contains placeholders after all
// the values have been applied.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

var placeholderRE = regexp.MustCompile(`\$\{([a-z_]+)\}`)

// New validates the given settings and creates the configuration.
func New(settings Settings) (result Config, err error) {
	err = settings.Validate()
	if err != nil {
		return
	}
	result = Config{
		paths:     settings.Paths,
		urls:      maps.Clone(settings.URLs),
		netboots:  toSet(settings.Distributions.Netboots),
		isos:      toSet(settings.Distributions.ISOs),
		firmwares: toSet(settings.Distributions.Firmwares),
	}
	return
}

// Validate checks that the settings contain everything the tool needs.
func (s Settings) Validate() error {
	var missing []string
	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	check("paths.temp", s.Paths.Temp)
	check("paths.archives", s.Paths.Archives)
	check("paths.tftpboot", s.Paths.TFTPBoot)
	check("paths.isos", s.Paths.ISOs)
	check("paths.templates", s.Paths.Templates)
	if len(missing) > 0 {
		return fmt.Errorf("missing mandatory settings: %s", strings.Join(missing, ", "))
	}
	for key, value := range s.URLs {
		if value == "" {
			return fmt.Errorf("URL template '%s' is empty", key)
		}
	}
	return nil
}

// Paths returns the directories used by the tool.
func (c Config) Paths() Paths {
	return c.paths
}

// IsNetboot checks if the given name is one of the configured netboot releases.
func (c Config) IsNetboot(name string) bool {
	_, ok := c.netboots[name]
	return ok
}

// IsISO checks if the given name is one of the configured ISO releases.
func (c Config) IsISO(name string) bool {
	_, ok := c.isos[name]
	return ok
}

// FirmwareRequired checks if the given 'distribution-release' key needs the non free firmware to
// be added to the netboot initrd.
func (c Config) FirmwareRequired(key string) bool {
	_, ok := c.firmwares[key]
	return ok
}

// Netboots returns the sorted list of configured netboot releases.
func (c Config) Netboots() []string {
	return sortedKeys(c.netboots)
}

// ISOs returns the sorted list of configured ISO releases.
func (c Config) ISOs() []string {
	return sortedKeys(c.isos)
}

// ResolveURL returns the URL template stored with the given key, with the '${field}' placeholders
// replaced by the given values.
func (c Config) ResolveURL(key string, values map[string]string) (result string, err error) {
	template, ok := c.urls[key]
	if !ok {
		err = fmt.Errorf("URL '%s' isn't configured", key)
		return
	}
	result, err = Substitute(template, values)
	if err != nil {
		err = fmt.Errorf("failed to resolve URL '%s': %w", key, err)
	}
	return
}

// Substitute replaces the '${field}' placeholders of the template with the given values. Values
// that aren't used by the template are ignored, but placeholders without a value are an error.
func Substitute(template string, values map[string]string) (result string, err error) {
	var unresolved []string
	result = placeholderRE.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRE.FindStringSubmatch(match)[1]
		value, ok := values[name]
		if !ok {
			unresolved = append(unresolved, name)
			return match
		}
		return value
	})
	if len(unresolved) > 0 {
		err = fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(unresolved, ", "))
	}
	return
}

func toSet(values []string) map[string]struct{} {
	result := make(map[string]struct{}, len(values))
	for _, value := range values {
		result[value] = struct{}{}
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	result := maps.Keys(set)
	slices.Sort(result)
	return result
}
