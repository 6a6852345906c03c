package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func testPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

func testJPEG() []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("preparePNG", func() {
	When("the image is already PNG", func() {
		It("returns it unchanged", func() {
			in := testPNG()
			out, err := preparePNG(in, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(in))
		})
	})

	When("the image is JPEG", func() {
		It("converts it to PNG", func() {
			out, err := preparePNG(testJPEG(), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			_, format, err := image.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the content type is missing", func() {
		It("sniffs the bytes", func() {
			out, err := preparePNG(testJPEG(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(out[:4]).To(Equal([]byte("\x89PNG")))
		})
	})

	When("the data is empty", func() {
		It("returns an error", func() {
			_, err := preparePNG(nil, "image/png")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the data is not an image", func() {
		It("returns an error", func() {
			_, err := preparePNG([]byte("hello, world"), "text/plain")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("isHEIC", func() {
	It("detects the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEIC(data, "")).To(BeTrue())
	})

	It("detects the MIME type", func() {
		Expect(isHEIC(nil, "image/heif")).To(BeTrue())
	})

	It("ignores other data", func() {
		Expect(isHEIC(testPNG(), "image/png")).To(BeFalse())
	})
})

var _ = Describe("normalizeMIME", func() {
	It("strips parameters and lowercases", func() {
		Expect(normalizeMIME(nil, " Image/JPEG; charset=binary")).To(Equal("image/jpeg"))
	})

	It("sniffs octet-stream uploads", func() {
		Expect(normalizeMIME(testPNG(), "application/octet-stream")).To(Equal("image/png"))
	})
})
