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
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jpoppe/seedbank/internal/config"
)

var _ = Describe("Release remover", func() {
	var (
		ctx     context.Context
		tmp     string
		logs    *logCapture
		remover *ReleaseRemover
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmp = GinkgoT().TempDir()
		cfg, err := config.New(config.Settings{
			Paths: config.Paths{
				Temp:      filepath.Join(tmp, "temp"),
				Archives:  filepath.Join(tmp, "archives"),
				TFTPBoot:  filepath.Join(tmp, "tftpboot"),
				ISOs:      filepath.Join(tmp, "isos"),
				Templates: filepath.Join(tmp, "templates"),
			},
			Distributions: config.Distributions{
				Netboots:  []string{"debian-wheezy-amd64", "ubuntu-trusty-amd64"},
				ISOs:      []string{"debian-wheezy-amd64-7.8.0"},
				Firmwares: []string{"debian-wheezy"},
			},
		})
		Expect(err).ToNot(HaveOccurred())
		var logger logr.Logger
		logs, logger = newLogCapture()
		remover, err = NewReleaseRemover().
			SetLogger(logger).
			SetConfig(cfg).
			Build()
		Expect(err).ToNot(HaveOccurred())

		// Populate the directories as if some releases had been provisioned:
		writeFile(filepath.Join(tmp, "tftpboot", "pxelinux.0"), []byte("pxelinux"))
		writeFile(filepath.Join(tmp, "tftpboot", "seedbank", "debian-wheezy-amd64", "linux"), []byte("linux"))
		writeFile(filepath.Join(tmp, "tftpboot", "seedbank", "debian-wheezy-amd64", "initrd.gz"), []byte("initrd"))
		writeFile(filepath.Join(tmp, "archives", "debian-wheezy-amd64", "netboot.tar.gz"), []byte("netboot"))
		writeFile(filepath.Join(tmp, "archives", "firmware-debian-wheezy", "firmware.tar.gz"), []byte("firmware"))
		writeFile(filepath.Join(tmp, "archives", "syslinux", "syslinux-6.03.tar.gz"), []byte("syslinux"))
		writeFile(filepath.Join(tmp, "isos", "debian-wheezy-amd64-7.8.0.iso"), []byte("iso"))
	})

	It("Can't be created without configuration", func() {
		_, err := NewReleaseRemover().
			SetLogger(GinkgoLogr).
			Build()
		Expect(err).To(MatchError("configuration is mandatory"))
	})

	It("Removes the files of a netboot release", func() {
		err := remover.Remove(ctx, "debian-wheezy-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(listTree(tmp)).To(ConsistOf(
			"tftpboot/",
			"tftpboot/pxelinux.0",
			"tftpboot/seedbank/",
			"archives/",
			"archives/syslinux/",
			"archives/syslinux/syslinux-6.03.tar.gz",
			"isos/",
			"isos/debian-wheezy-amd64-7.8.0.iso",
		))
	})

	It("Removes the archive of a release that hasn't been installed", func() {
		err := remover.Remove(ctx, "debian-wheezy-amd64")
		Expect(err).ToNot(HaveOccurred())
		writeFile(filepath.Join(tmp, "archives", "debian-wheezy-amd64", "netboot.tar.gz"), []byte("netboot"))
		err = remover.Remove(ctx, "debian-wheezy-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(listTree(filepath.Join(tmp, "archives"))).To(ConsistOf(
			"syslinux/",
			"syslinux/syslinux-6.03.tar.gz",
		))
	})

	It("Succeeds when nothing has been provisioned", func() {
		err := remover.Remove(ctx, "ubuntu-trusty-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(listTree(filepath.Join(tmp, "tftpboot", "seedbank"))).To(ConsistOf(
			"debian-wheezy-amd64/",
			"debian-wheezy-amd64/initrd.gz",
			"debian-wheezy-amd64/linux",
		))
	})

	It("Removes the ISO file", func() {
		err := remover.Remove(ctx, "debian-wheezy-amd64-7.8.0")
		Expect(err).ToNot(HaveOccurred())
		Expect(listTree(filepath.Join(tmp, "isos"))).To(BeEmpty())
		Expect(listTree(filepath.Join(tmp, "tftpboot", "seedbank"))).To(HaveLen(3))
	})

	It("Succeeds when the ISO hasn't been downloaded", func() {
		err := remover.Remove(ctx, "debian-wheezy-amd64-7.8.0")
		Expect(err).ToNot(HaveOccurred())
		err = remover.Remove(ctx, "debian-wheezy-amd64-7.8.0")
		Expect(err).ToNot(HaveOccurred())
	})

	It("Doesn't touch anything for releases that aren't in the configuration", func() {
		before := listTree(tmp)
		for _, name := range []string{"debian-sid-amd64", "syslinux", "", "../isos"} {
			err := remover.Remove(ctx, name)
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(listTree(tmp)).To(Equal(before))
	})

	It("Reports releases that aren't in the configuration as errors", func() {
		err := remover.Remove(ctx, "debian-sid-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(logs.Messages()).To(ConsistOf(And(
			ContainSubstring(`"msg"="Release has not been defined in settings"`),
			ContainSubstring(`"error"=null`),
			ContainSubstring(`"release"="debian-sid-amd64"`),
		)))
	})

	It("Reports what it finds when only the archive has been downloaded", func() {
		archive := filepath.Join(tmp, "archives", "ubuntu-trusty-amd64")
		writeFile(filepath.Join(archive, "netboot.tar.gz"), []byte("netboot"))
		err := remover.Remove(ctx, "ubuntu-trusty-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(listTree(filepath.Join(tmp, "archives"))).ToNot(ContainElement("ubuntu-trusty-amd64/"))
		messages := logs.Messages()
		Expect(messages).To(ContainElement(And(
			ContainSubstring(`"msg"="Release has not been installed"`),
			ContainSubstring(`"release"="ubuntu-trusty-amd64"`),
		)))
		Expect(messages).To(ContainElement(And(
			ContainSubstring(`"msg"="Removed directory"`),
			ContainSubstring(fmt.Sprintf(`"dir"=%q`, archive)),
		)))
		Expect(messages).To(ContainElement(And(
			ContainSubstring(`"msg"="Firmware not found, nothing to do"`),
			ContainSubstring(`"release"="ubuntu-trusty-amd64"`),
		)))
		Expect(messages).ToNot(ContainElement(
			ContainSubstring(`"msg"="Release archive has not been downloaded"`),
		))
	})

	It("Reports the directories that it removes", func() {
		err := remover.Remove(ctx, "debian-wheezy-amd64")
		Expect(err).ToNot(HaveOccurred())
		Expect(logs.Messages()).To(ConsistOf(
			ContainSubstring(`"msg"="Removed directory"`),
			ContainSubstring(`"msg"="Removed directory"`),
			ContainSubstring(`"msg"="Removed directory"`),
		))
	})
})
