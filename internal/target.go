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
	"strings"
)

// Target identifies a release, for example 'debian-wheezy-amd64' for a netboot image or
// 'debian-wheezy-amd64-7.8.0' for an installation ISO.
type Target struct {
	Distribution string
	Release      string
	Architecture string
	Version      string
}

// ErrMalformedTarget is returned when a release name doesn't have the expected number of
// hyphen separated fields.
var ErrMalformedTarget = errors.New("malformed release name")

// ParseNetbootTarget parses a name with the '<distribution>-<release>-<architecture>' format.
func ParseNetbootTarget(name string) (result Target, err error) {
	fields, err := splitTarget(name, 3)
	if err != nil {
		return
	}
	result = Target{
		Distribution: fields[0],
		Release:      fields[1],
		Architecture: fields[2],
	}
	return
}

// ParseISOTarget parses a name with the '<distribution>-<release>-<architecture>-<version>'
// format.
func ParseISOTarget(name string) (result Target, err error) {
	fields, err := splitTarget(name, 4)
	if err != nil {
		return
	}
	result = Target{
		Distribution: fields[0],
		Release:      fields[1],
		Architecture: fields[2],
		Version:      fields[3],
	}
	return
}

// Name returns the hyphen separated name of the target.
func (t Target) Name() string {
	fields := []string{t.Distribution, t.Release, t.Architecture}
	if t.Version != "" {
		fields = append(fields, t.Version)
	}
	return strings.Join(fields, "-")
}

// FirmwareKey returns the 'distribution-release' key used to decide if the target needs the non
// free firmware.
func (t Target) FirmwareKey() string {
	return t.Distribution + "-" + t.Release
}

// Values returns the fields of the target indexed by the names used in URL templates.
func (t Target) Values() map[string]string {
	result := map[string]string{
		"distribution": t.Distribution,
		"release":      t.Release,
		"architecture": t.Architecture,
	}
	if t.Version != "" {
		result["version"] = t.Version
	}
	return result
}

func splitTarget(name string, count int) (fields []string, err error) {
	fields = strings.Split(name, "-")
	if len(fields) != count {
		err = fmt.Errorf(
			"%w: '%s' should have %d hyphen separated fields but has %d",
			ErrMalformedTarget, name, count, len(fields),
		)
		return
	}
	for _, field := range fields {
		if field == "" {
			err = fmt.Errorf("%w: '%s' contains an empty field", ErrMalformedTarget, name)
			return
		}
	}
	return
}
