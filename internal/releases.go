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
	"os"
)

// ReleaseKind indicates how a release is installed.
type ReleaseKind string

const (
	ReleaseKindNetboot ReleaseKind = "netboot"
	ReleaseKindISO     ReleaseKind = "iso"
)

// ReleaseStatus describes one of the releases of the configuration.
type ReleaseStatus struct {
	Name      string
	Kind      ReleaseKind
	Installed bool

	// Firmware indicates if the non free firmware is added to the netboot initrd.
	Firmware bool

	// Size is the size of the ISO file, only when it is installed.
	Size int64
}

// Releases returns the status of all the releases of the configuration, netboot releases first,
// sorted by name.
func (p *Provisioner) Releases() (result []ReleaseStatus, err error) {
	for _, name := range p.config.Netboots() {
		status := ReleaseStatus{
			Name: name,
			Kind: ReleaseKindNetboot,
		}
		target, parseErr := ParseNetbootTarget(name)
		if parseErr == nil {
			status.Firmware = p.config.FirmwareRequired(target.FirmwareKey())
		}
		var info os.FileInfo
		info, err = os.Stat(p.NetbootDir(name))
		switch {
		case err == nil:
			status.Installed = info.IsDir()
		case errors.Is(err, os.ErrNotExist):
			err = nil
		default:
			return
		}
		result = append(result, status)
	}
	for _, name := range p.config.ISOs() {
		status := ReleaseStatus{
			Name: name,
			Kind: ReleaseKindISO,
		}
		var info os.FileInfo
		info, err = os.Stat(p.ISOFile(name))
		switch {
		case err == nil:
			status.Installed = info.Mode().IsRegular()
			status.Size = info.Size()
		case errors.Is(err, os.ErrNotExist):
			err = nil
		default:
			return
		}
		result = append(result, status)
	}
	return
}
