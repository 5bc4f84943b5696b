package scanning

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"

	"github.com/zombor/lotto-checker/internal/ticket"
)

var _ = Describe("GeminiClassic", func() {
	var (
		server   *ghttp.Server
		analyzer *GeminiClassic
		result   *ticket.LottoResult
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		analyzer, err = NewGeminiClassic("test-key", "", option.WithEndpoint(server.URL()))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(analyzer.Close()).To(Succeed())
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = analyzer.Analyze(context.Background(), Request{Image: testJPEG(8, 8), MIMEType: "image/jpeg"})
	})

	When("the model returns JSON with citations", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, MatchRegexp(`gemini-2\.5-pro:generateContent$`)),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"candidates": []map[string]any{{
						"content": map[string]any{
							"role":  "model",
							"parts": []map[string]any{{"text": jackpotJSON}},
						},
						"citationMetadata": map[string]any{
							"citationSources": []map[string]any{
								{"uri": "https://dhlottery.co.kr/1100"},
								{},
							},
						},
					}},
				}),
			))
		})

		It("makes exactly one request", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})

		It("returns the parsed result", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DrawNumber).To(Equal("1100"))
			Expect(result.TicketRows).To(HaveLen(1))
		})

		It("titles every citation with the placeholder", func() {
			Expect(result.Sources).To(Equal([]ticket.Source{
				{Title: "Official Source", URI: "https://dhlottery.co.kr/1100"},
				{Title: "Official Source", URI: "#"},
			}))
		})
	})

	When("the model refuses to read the ticket", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"candidates": []map[string]any{{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": `{"error": "unreadable image"}`}},
					},
				}},
			}))
		})

		It("returns a parse AnalysisError", func() {
			var analysisErr *AnalysisError
			Expect(errors.As(err, &analysisErr)).To(BeTrue())
			Expect(analysisErr.Op).To(Equal("parse"))
			Expect(result).To(BeNil())
		})
	})

	When("the service rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusForbidden, map[string]any{
				"error": map[string]any{"code": 403, "message": "API key not valid", "status": "PERMISSION_DENIED"},
			}))
		})

		It("returns a generate AnalysisError", func() {
			var analysisErr *AnalysisError
			Expect(errors.As(err, &analysisErr)).To(BeTrue())
			Expect(analysisErr.Op).To(Equal("generate"))
			Expect(result).To(BeNil())
		})
	})
})
