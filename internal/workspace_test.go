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
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Workspace", func() {
	var parent string

	BeforeEach(func() {
		parent = GinkgoT().TempDir()
	})

	It("Uses a different directory each time", func() {
		first := NewWorkspace(parent)
		second := NewWorkspace(parent)
		Expect(first.Dir()).ToNot(Equal(second.Dir()))
		Expect(filepath.Dir(first.Dir())).To(Equal(parent))
		Expect(strings.HasPrefix(filepath.Base(first.Dir()), "seedbank-")).To(BeTrue())
	})

	It("Doesn't create anything till reset", func() {
		workspace := NewWorkspace(parent)
		_, err := os.Stat(workspace.Dir())
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("Reset leaves an empty directory", func() {
		workspace := NewWorkspace(parent)
		writeFile(workspace.Path("a", "b", "c.txt"), []byte("c"))
		Expect(workspace.Reset()).To(Succeed())
		info, err := os.Stat(workspace.Dir())
		Expect(err).ToNot(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		expectEmptyDir(workspace.Dir())
	})

	It("Sub workspace is inside the parent workspace", func() {
		workspace := NewWorkspace(parent)
		sub := workspace.Sub("stage")
		Expect(sub.Dir()).To(Equal(workspace.Path("stage")))
		Expect(sub.Reset()).To(Succeed())
		Expect(listTree(workspace.Dir())).To(ConsistOf("stage/"))
	})

	It("Remove deletes the directory", func() {
		workspace := NewWorkspace(parent)
		writeFile(workspace.Path("file.txt"), []byte("x"))
		Expect(workspace.Remove()).To(Succeed())
		Expect(listTree(parent)).To(BeEmpty())
	})

	It("Remove succeeds if the directory doesn't exist", func() {
		workspace := NewWorkspace(parent)
		Expect(workspace.Remove()).To(Succeed())
	})
})
