package workflow

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("SnapshotCamera", func() {
	var (
		server *ghttp.Server
		camera *SnapshotCamera
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		camera = NewSnapshotCamera(server.URL()+"/shot.jpg", 0)
	})

	AfterEach(func() {
		camera.Close()
		server.Close()
	})

	It("fetches one still", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest("GET", "/shot.jpg"),
			ghttp.RespondWith(http.StatusOK, []byte("jpeg-bytes"), http.Header{"Content-Type": []string{"image/jpeg"}}),
		))

		data, contentType, err := camera.Capture(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("jpeg-bytes")))
		Expect(contentType).To(Equal("image/jpeg"))
	})

	It("fails on an error status", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, "busy"))

		_, _, err := camera.Capture(context.Background())
		Expect(err).To(HaveOccurred())
	})

	It("refuses to capture once closed", func() {
		Expect(camera.Close()).To(Succeed())
		_, _, err := camera.Capture(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(server.ReceivedRequests()).To(BeEmpty())
	})

	It("works as the controller's capture device", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusOK, []byte("jpeg-bytes"), http.Header{"Content-Type": []string{"image/jpeg"}}))

		ctrl := NewController(&mockExtractor{}, &mockSaver{}, 0)
		_, err := ctrl.Attach(camera)
		Expect(err).NotTo(HaveOccurred())

		v, err := ctrl.Capture(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(v.State).To(Equal(ImageCaptured))
	})
})

var _ = Describe("StaticImage", func() {
	It("yields its bytes", func() {
		data, ct, err := (&StaticImage{Data: []byte("x"), ContentType: "image/png"}).Capture(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("x")))
		Expect(ct).To(Equal("image/png"))
	})

	It("fails when empty", func() {
		_, _, err := (&StaticImage{}).Capture(context.Background())
		Expect(err).To(MatchError(ErrNoImage))
	})
})
