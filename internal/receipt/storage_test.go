package receipt

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
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "test.jpg"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save("+1 555", filename, []byte("test file content"))
		})

		When("saving succeeds", func() {
			It("should return a path inside the user directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal("1555/test.jpg"))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, "1555", "test.jpg")).To(BeAnExistingFile())
			})
		})

		When("the filename contains directories", func() {
			BeforeEach(func() {
				filename = "../../etc/passwd"
			})

			It("should keep only the base name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal("1555/passwd"))
			})
		})
	})

	Describe("Get", func() {
		It("should return the saved data", func() {
			path, err := storage.Save("555", "a.txt", []byte("hello"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hello"))
		})

		It("should return an error for missing files", func() {
			_, err := storage.Get("555/missing.txt")
			Expect(err).To(HaveOccurred())
		})

		It("should reject paths escaping the storage root", func() {
			_, err := storage.Get("../outside.txt")
			Expect(err).To(MatchError(ContainSubstring("invalid storage path")))
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			path, err := storage.Save("555", "a.txt", []byte("hello"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(path)).To(Succeed())
			Expect(filepath.Join(tmpDir, path)).NotTo(BeAnExistingFile())
		})
	})

	Describe("UserDir", func() {
		It("should keep only safe characters", func() {
			Expect(UserDir("+44 (20) 7946-0958")).To(Equal("44207946-0958"))
		})

		It("should fall back for empty identifiers", func() {
			Expect(UserDir("+++")).To(Equal("unknown"))
		})
	})
})
