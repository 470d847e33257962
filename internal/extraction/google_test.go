package extraction

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

func testClientOptions(server *ghttp.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(server.URL() + "/"),
		option.WithoutAuthentication(),
	}
}

var _ = Describe("Google collaborators", func() {
	var (
		server *ghttp.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("VisionOCR", func() {
		var ocr *VisionOCR

		BeforeEach(func() {
			var err error
			ocr, err = NewVisionOCR(ctx, nil, testClientOptions(server)...)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sends TEXT_DETECTION with language hints and returns the full text", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/images:annotate"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"requests": []any{map[string]any{
						"image":        map[string]any{"content": base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))},
						"features":     []any{map[string]any{"type": "TEXT_DETECTION"}},
						"imageContext": map[string]any{"languageHints": DefaultLanguageHints},
					}},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"responses": []any{map[string]any{
						"fullTextAnnotation": map[string]any{"text": "CAFE LUNA\nTOTAL 450\n"},
					}},
				}),
			))

			text, err := ocr.ExtractText(ctx, []byte("jpeg-bytes"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("CAFE LUNA\nTOTAL 450"))
		})

		It("falls back to the first text annotation", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []any{map[string]any{
					"textAnnotations": []any{map[string]any{"description": "HELLO"}},
				}},
			}))

			text, err := ocr.ExtractText(ctx, []byte("jpeg-bytes"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("HELLO"))
		})

		It("returns empty text when nothing was detected", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []any{map[string]any{}},
			}))

			text, err := ocr.ExtractText(ctx, []byte("jpeg-bytes"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(BeEmpty())
		})

		It("reports per-image errors as external failures", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []any{map[string]any{
					"error": map[string]any{"code": 3, "message": "Bad image data."},
				}},
			}))

			_, err := ocr.ExtractText(ctx, []byte("jpeg-bytes"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
			Expect(err.Error()).To(ContainSubstring("Bad image data."))
		})

		It("reports HTTP errors as external failures", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`))

			_, err := ocr.ExtractText(ctx, []byte("jpeg-bytes"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
		})

		It("refuses PDFs", func() {
			_, err := ocr.ExtractText(ctx, []byte("%PDF-1.4"), media.PDF)
			Expect(err).To(MatchError(apperr.ErrUnsupportedMedia))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})

	Describe("DocumentAI", func() {
		var docai *DocumentAI

		BeforeEach(func() {
			var err error
			docai, err = NewDocumentAI(ctx, DocumentAIOptions{
				ProjectID:   "receipts-123",
				Location:    "eu",
				ProcessorID: "ocr-1",
			}, testClientOptions(server)...)
			Expect(err).NotTo(HaveOccurred())
		})

		It("processes the PDF with the configured processor", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/projects/receipts-123/locations/eu/processors/ocr-1:process"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"rawDocument": map[string]any{
						"content":  base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
						"mimeType": "application/pdf",
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"document": map[string]any{"text": "  INVOICE 42\nTOTAL 99.00  "},
				}),
			))

			text, err := docai.ExtractText(ctx, []byte("%PDF-1.4"), media.PDF)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("INVOICE 42\nTOTAL 99.00"))
		})

		It("reports failures as external", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`))

			_, err := docai.ExtractText(ctx, []byte("%PDF-1.4"), media.PDF)
			Expect(err).To(MatchError(apperr.ErrExternalService))
		})

		It("requires a project and processor", func() {
			_, err := NewDocumentAI(ctx, DocumentAIOptions{Location: "us"}, testClientOptions(server)...)
			Expect(err).To(MatchError(ContainSubstring("project and processor are required")))
		})
	})

	Describe("GoogleTranslate", func() {
		var translator *GoogleTranslate

		BeforeEach(func() {
			var err error
			translator, err = NewGoogleTranslate(ctx, testClientOptions(server)...)
			Expect(err).NotTo(HaveOccurred())
		})

		It("translates plain text to the target language", func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v2"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"data": map[string]any{
						"q":      []string{"Café 2 x 100"},
						"target": "en",
						"format": "text",
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"data": map[string]any{"translations": []any{map[string]any{
						"translatedText":         "Coffee 2 x 100",
						"detectedSourceLanguage": "fr",
					}}},
				}),
			))

			text, err := translator.Translate(ctx, "Café 2 x 100", "en")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Coffee 2 x 100"))
		})

		It("keeps text already in the target language", func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"data": map[string]any{"translations": []any{map[string]any{
					"translatedText":         "TOTAL  450",
					"detectedSourceLanguage": "en",
				}}},
			}))

			text, err := translator.Translate(ctx, "TOTAL   450", "en")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("TOTAL   450"))
		})

		It("skips the call for blank text", func() {
			text, err := translator.Translate(ctx, "  \n", "en")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("  \n"))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})

		It("reports failures as external", func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`))

			_, err := translator.Translate(ctx, "bonjour", "en")
			Expect(err).To(MatchError(apperr.ErrExternalService))
		})
	})
})
