package warranty

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "bills"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("saves, reads and deletes a file", func() {
		name, err := storage.Save("bill.jpg", []byte("content"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("bill.jpg"))
		Expect(filepath.Join(tmpDir, "bills", "bill.jpg")).To(BeAnExistingFile())

		data, err := storage.Get(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("content")))

		Expect(storage.Delete(name)).To(Succeed())
		_, err = storage.Get(name)
		Expect(err).To(HaveOccurred())
	})

	It("keeps names inside the base directory", func() {
		name, err := storage.Save("../../escape.jpg", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("escape.jpg"))
		Expect(filepath.Join(tmpDir, "bills", "escape.jpg")).To(BeAnExistingFile())
	})

	It("fails to delete a missing file", func() {
		Expect(storage.Delete("missing.jpg")).NotTo(Succeed())
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleans names",
		func(in, want string) {
			Expect(sanitizeFilename(in)).To(Equal(want))
		},
		Entry("plain", "bill.png", "bill.png"),
		Entry("spaces and punctuation", "My Bill (copy).JPG", "My-Bill-copy.jpg"),
		Entry("nothing usable", "@@@.pdf", "bill.pdf"),
		Entry("empty", "", "bill"),
		Entry("long extension dropped", "scan.verylongext", "scan"),
	)
})
