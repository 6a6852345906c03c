package scanning

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server    *ghttp.Server
		extractor *Ollama
		data      *DocumentData
		err       error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		extractor, err = NewOllama(server.URL(), "llava", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = extractor.ExtractDocument(context.Background(), testPNG(), "image/png")
	})

	When("the model answers with a document", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"done": true,
					"message": map[string]any{
						"role":    "assistant",
						"content": `{"is_valid_document": true, "brand_name": "Whirlpool", "category": "Washing Machine"}`,
					},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the answer", func() {
			Expect(data.BrandName).To(Equal("Whirlpool"))
			Expect(data.Category).To(Equal("Washing Machine"))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns an extraction failure", func() {
			Expect(err).To(MatchError(ErrExtractionFailed))
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"done":    true,
				"message": map[string]any{"role": "assistant", "content": "I can't read this, sorry."},
			}))
		})

		It("returns an extraction failure", func() {
			Expect(err).To(MatchError(ErrExtractionFailed))
		})
	})
})
