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
	"os"
	"path/filepath"
	"time"

	"github.com/u-root/u-root/pkg/cpio"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Initrd patcher", func() {
	var (
		ctx       context.Context
		tmp       string
		initrd    string
		firmware  string
		workspace *Workspace
		patcher   *InitrdPatcher
	)

	modules := "lib/modules/3.2.0-4-amd64/kernel/drivers/usb"

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tmp = GinkgoT().TempDir()
		workspace = NewWorkspace(tmp).Sub("stage")
		patcher, err = NewInitrdPatcher().
			SetLogger(GinkgoLogr).
			Build()
		Expect(err).ToNot(HaveOccurred())

		initrd = filepath.Join(tmp, "initrd.gz")
		writeFile(initrd, writeInitrd(
			CompressionGzip,
			[]string{
				"lib",
				"lib/firmware",
				"lib/modules",
				"lib/modules/3.2.0-4-amd64",
				"lib/modules/3.2.0-4-amd64/kernel",
				"lib/modules/3.2.0-4-amd64/kernel/drivers",
				modules,
				modules + "/host",
				modules + "/storage",
			},
			map[string]string{
				"init":                                  "#!/bin/sh",
				"lib/firmware/existing.bin":             "existing",
				modules + "/host/ehci-hcd.ko":           "ehci",
				modules + "/storage/usb-storage.ko":     "storage",
				modules + "/storage/ums-realtek.ko":     "realtek",
				"lib/modules/3.2.0-4-amd64/modules.dep": "deps",
			},
		))

		firmware = filepath.Join(tmp, "packages", "lib", "firmware")
		writeFile(filepath.Join(firmware, "rtl_nic", "rtl8168d-1.fw"), []byte("rtl"))
		writeFile(filepath.Join(firmware, "bnx2-06-6.2.1.fw"), []byte("bnx2"))
	})

	It("Adds the firmware and removes the USB storage drivers", func() {
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd:          initrd,
			Firmware:        firmware,
			StripUSBStorage: true,
		}, workspace)
		Expect(err).ToNot(HaveOccurred())

		content, compression := readInitrd(initrd)
		Expect(compression).To(Equal(CompressionGzip))
		Expect(content).To(HaveKeyWithValue("init", "#!/bin/sh"))
		Expect(content).To(HaveKeyWithValue("lib/firmware/existing.bin", "existing"))
		Expect(content).To(HaveKeyWithValue("lib/firmware/rtl_nic/rtl8168d-1.fw", "rtl"))
		Expect(content).To(HaveKeyWithValue("lib/firmware/bnx2-06-6.2.1.fw", "bnx2"))
		Expect(content).To(HaveKeyWithValue(modules+"/host/ehci-hcd.ko", "ehci"))
		Expect(content).To(HaveKeyWithValue(modules+"/host", "<dir>"))
		Expect(content).ToNot(HaveKey(modules + "/storage"))
		Expect(content).ToNot(HaveKey(modules + "/storage/usb-storage.ko"))
		Expect(content).ToNot(HaveKey(modules + "/storage/ums-realtek.ko"))
	})

	It("Leaves the workspace and the firmware source directory empty", func() {
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd:          initrd,
			Firmware:        firmware,
			StripUSBStorage: true,
		}, workspace)
		Expect(err).ToNot(HaveOccurred())
		expectEmptyDir(workspace.Dir())
		Expect(listTree(firmware)).ToNot(ContainElement("bnx2-06-6.2.1.fw"))
		_, err = os.Stat(initrd + ".new")
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("Keeps the drivers if not requested to remove them", func() {
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd: initrd,
		}, workspace)
		Expect(err).ToNot(HaveOccurred())
		content, _ := readInitrd(initrd)
		Expect(content).To(HaveKeyWithValue(modules+"/storage/usb-storage.ko", "storage"))
		Expect(content).ToNot(HaveKey("lib/firmware/bnx2-06-6.2.1.fw"))
	})

	It("Fails if the firmware directory doesn't exist", func() {
		original := readFile(initrd)
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd:   initrd,
			Firmware: filepath.Join(tmp, "missing"),
		}, workspace)
		Expect(err).To(MatchError(ContainSubstring("doesn't exist")))
		Expect(readFile(initrd)).To(Equal(original))
		expectEmptyDir(workspace.Dir())
	})

	It("Fails if the initrd doesn't exist", func() {
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd: filepath.Join(tmp, "missing.gz"),
		}, workspace)
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("Preserves xz compression", func() {
		xzInitrd := filepath.Join(tmp, "initrd.xz")
		writeFile(xzInitrd, writeInitrd(
			CompressionXZ,
			[]string{"lib"},
			map[string]string{"lib/ld.so": "ld"},
		))
		err := patcher.Patch(ctx, InitrdPatch{
			Initrd:   xzInitrd,
			Firmware: firmware,
		}, workspace)
		Expect(err).ToNot(HaveOccurred())
		content, compression := readInitrd(xzInitrd)
		Expect(compression).To(Equal(CompressionXZ))
		Expect(content).To(HaveKeyWithValue("lib/ld.so", "ld"))
		Expect(content).To(HaveKeyWithValue("lib/firmware/rtl_nic/rtl8168d-1.fw", "rtl"))
	})

	It("Packs what it unpacks", func() {
		dir := filepath.Join(tmp, "unpacked")
		compression, err := patcher.Unpack(ctx, initrd, dir)
		Expect(err).ToNot(HaveOccurred())
		Expect(compression).To(Equal(CompressionGzip))
		repacked := filepath.Join(tmp, "repacked.gz")
		err = patcher.Pack(ctx, dir, repacked, compression)
		Expect(err).ToNot(HaveOccurred())
		original, _ := readInitrd(initrd)
		result, _ := readInitrd(repacked)
		Expect(result).To(Equal(original))
	})

	It("Doesn't write through symbolic links in the image", func() {
		outside := filepath.Join(tmp, "outside")
		Expect(os.Mkdir(outside, 0755)).To(Succeed())
		evil := filepath.Join(tmp, "evil.gz")
		writeFile(evil, writeRecords(
			CompressionGzip,
			cpio.Symlink("evil", outside),
			cpio.StaticFile("evil/pwned.txt", "pwned", 0644),
		))
		original := readFile(evil)
		err := patcher.Patch(ctx, InitrdPatch{Initrd: evil}, workspace)
		Expect(err).To(MatchError(ContainSubstring("symbolic link")))
		_, err = os.Stat(filepath.Join(outside, "pwned.txt"))
		Expect(err).To(MatchError(os.ErrNotExist))
		Expect(readFile(evil)).To(Equal(original))
		expectEmptyDir(workspace.Dir())
	})

	It("Preserves the times of the entries", func() {
		stamped := filepath.Join(tmp, "stamped.gz")
		lib := cpio.Directory("lib", 0755)
		lib.MTime = 1400000000
		ld := cpio.StaticFile("lib/ld.so", "ld", 0755)
		ld.MTime = 1400000100
		link := cpio.Symlink("lib/ld-linux.so.2", "ld.so")
		link.MTime = 1400000200
		writeFile(stamped, writeRecords(CompressionGzip, lib, ld, link))

		err := patcher.Patch(ctx, InitrdPatch{
			Initrd:   stamped,
			Firmware: firmware,
		}, workspace)
		Expect(err).ToNot(HaveOccurred())
		records, _ := readRecords(stamped)
		times := map[string]uint64{}
		for _, record := range records {
			times[record.Name] = record.MTime
		}
		Expect(times).To(HaveKeyWithValue("lib", uint64(1400000000)))
		Expect(times).To(HaveKeyWithValue("lib/ld.so", uint64(1400000100)))
		Expect(times).To(HaveKeyWithValue("lib/ld-linux.so.2", uint64(1400000200)))
	})

	It("Produces the same image when patching the same content twice", func() {
		// Two copies of the image and of the firmware, as patching consumes the firmware:
		images := []string{
			filepath.Join(tmp, "first.gz"),
			filepath.Join(tmp, "second.gz"),
		}
		for i, image := range images {
			writeFile(image, []byte(readFile(initrd)))
			source := filepath.Join(tmp, "firmware", string(rune('a'+i)))
			writeFile(filepath.Join(source, "rtl_nic", "rtl8168d-1.fw"), []byte("rtl"))
			for _, file := range []string{
				filepath.Join(source, "rtl_nic", "rtl8168d-1.fw"),
				filepath.Join(source, "rtl_nic"),
				source,
			} {
				Expect(os.Chtimes(file, packageTime, packageTime)).To(Succeed())
			}
			if i > 0 {
				// Make sure that the clock has moved to the next second:
				time.Sleep(1100 * time.Millisecond)
			}
			err := patcher.Patch(ctx, InitrdPatch{
				Initrd:          image,
				Firmware:        source,
				StripUSBStorage: true,
			}, workspace)
			Expect(err).ToNot(HaveOccurred())
		}
		Expect([]byte(readFile(images[1]))).To(Equal([]byte(readFile(images[0]))))
	})

	It("Keeps empty files", func() {
		empty := filepath.Join(tmp, "empty.gz")
		writeFile(empty, writeInitrd(
			CompressionGzip,
			nil,
			map[string]string{"etc/empty.conf": "", "etc/full.conf": "full"},
		))
		err := patcher.Patch(ctx, InitrdPatch{Initrd: empty}, workspace)
		Expect(err).ToNot(HaveOccurred())
		content, _ := readInitrd(empty)
		Expect(content).To(HaveKeyWithValue("etc/empty.conf", ""))
		Expect(content).To(HaveKeyWithValue("etc/full.conf", "full"))
	})

	Describe("Removal of USB storage drivers", func() {
		var dir string

		BeforeEach(func() {
			dir = filepath.Join(tmp, "tree")
			writeFile(filepath.Join(dir, "a", "kernel", "drivers", "usb", "storage", "x.ko"), []byte("x"))
			writeFile(filepath.Join(dir, "b", "kernel", "drivers", "usb", "storage", "deep", "y.ko"), []byte("y"))
			writeFile(filepath.Join(dir, "a", "kernel", "drivers", "usb", "host", "z.ko"), []byte("z"))
			writeFile(filepath.Join(dir, "a", "kernel", "drivers", "usb", "storage.txt"), []byte("t"))
			writeFile(filepath.Join(dir, "kernel", "drivers", "scsi", "sd_mod.ko"), []byte("s"))
		})

		It("Removes only the matching directories", func() {
			removed, err := patcher.StripUSBStorage(dir)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(ConsistOf(
				filepath.Join("a", "kernel", "drivers", "usb", "storage"),
				filepath.Join("b", "kernel", "drivers", "usb", "storage"),
			))
			Expect(listTree(dir)).To(ConsistOf(
				"a/",
				"a/kernel/",
				"a/kernel/drivers/",
				"a/kernel/drivers/usb/",
				"a/kernel/drivers/usb/host/",
				"a/kernel/drivers/usb/host/z.ko",
				"a/kernel/drivers/usb/storage.txt",
				"b/",
				"b/kernel/",
				"b/kernel/drivers/",
				"b/kernel/drivers/usb/",
				"kernel/",
				"kernel/drivers/",
				"kernel/drivers/scsi/",
				"kernel/drivers/scsi/sd_mod.ko",
			))
		})

		It("Does nothing when there are no drivers", func() {
			other := filepath.Join(tmp, "other")
			writeFile(filepath.Join(other, "init"), []byte("init"))
			removed, err := patcher.StripUSBStorage(other)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(BeEmpty())
			Expect(listTree(other)).To(ConsistOf("init"))
		})
	})
})
