package workflow

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		registry *Registry
		built    int
	)

	BeforeEach(func() {
		built = 0
		registry = NewRegistry(time.Minute, func() *Controller {
			built++
			return NewController(&mockExtractor{draft: validDraft()}, &mockSaver{}, 0)
		})
	})

	It("returns the same controller for a session", func() {
		a := registry.Get("session-1")
		Expect(registry.Get("session-1")).To(BeIdenticalTo(a))
		Expect(built).To(Equal(1))
	})

	It("keeps sessions apart", func() {
		Expect(registry.Get("session-1")).NotTo(BeIdenticalTo(registry.Get("session-2")))
		Expect(registry.Len()).To(Equal(2))
	})

	It("invalidates a dropped controller", func() {
		ctrl := registry.Get("session-1")
		src := &mockSource{data: []byte("jpeg")}
		_, err := ctrl.Attach(src)
		Expect(err).NotTo(HaveOccurred())

		registry.Drop("session-1")

		Expect(src.closed).To(Equal(1))
		_, err = ctrl.Open()
		Expect(err).To(MatchError(ErrStale))
		Expect(registry.Get("session-1")).NotTo(BeIdenticalTo(ctrl))
	})

	It("invalidates an expired controller that was not swept yet", func() {
		registry = newRegistry(20*time.Millisecond, 0, func() *Controller {
			return NewController(&mockExtractor{}, &mockSaver{}, 0)
		})
		ctrl := registry.Get("session-1")
		src := &mockSource{data: []byte("jpeg")}
		_, err := ctrl.Attach(src)
		Expect(err).NotTo(HaveOccurred())

		time.Sleep(40 * time.Millisecond)

		Expect(registry.Get("session-1")).NotTo(BeIdenticalTo(ctrl))
		Expect(src.closed).To(Equal(1))
		_, err = ctrl.Open()
		Expect(err).To(MatchError(ErrStale))
	})

	It("invalidates controllers that sit idle past the TTL", func() {
		registry = NewRegistry(20*time.Millisecond, func() *Controller {
			return NewController(&mockExtractor{}, &mockSaver{}, 0)
		})
		ctrl := registry.Get("session-1")

		Eventually(func() error {
			_, err := ctrl.Open()
			if err == nil {
				ctrl.Cancel()
			}
			return err
		}).WithTimeout(2 * time.Second).Should(MatchError(ErrStale))
	})
})
