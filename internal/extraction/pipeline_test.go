package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

const cafeLunaReply = `{"vendor":"Cafe Luna","date":"12-01-2024","total_amount":450,"items":[{"name":"coffee","quantity":2,"price":100,"category":"food"},{"name":"pastry","quantity":1,"price":250,"category":"food"}]}`

var _ = Describe("Pipeline", func() {
	var (
		extractor  *mockExtractor
		translator *mockTranslator
		generator  *mockGenerator
		recorder   *mockRecorder
		pipeline   *Pipeline
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		extractor = &mockExtractor{Text: "CAFE LUNA\nCafé 2 x 100\nTOTAL 450"}
		translator = &mockTranslator{Prefix: "[en] "}
		generator = &mockGenerator{Reply: cafeLunaReply}
		recorder = &mockRecorder{}
		pipeline = NewPipeline(extractor, translator, generator,
			WithTargetLanguage("en"),
			WithCallTimeout(time.Second),
			WithMetrics(recorder),
		)
	})

	Describe("Run", func() {
		It("runs every stage once and returns the parsed result", func() {
			result, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Vendor).To(Equal("Cafe Luna"))
			Expect(result.TotalAmount.Value.Equal(decimal.NewFromInt(450))).To(BeTrue())
			Expect(result.Items).To(HaveLen(2))

			Expect(extractor.Calls).To(Equal(1))
			Expect(extractor.Kinds).To(ConsistOf(media.Image))
			Expect(translator.Calls).To(Equal(1))
			Expect(translator.Targets).To(ConsistOf("en"))
			Expect(generator.Calls).To(Equal(1))
			Expect(generator.Prompts[0]).To(ContainSubstring("[en] CAFE LUNA"))
		})

		It("reports each stage to the recorder", func() {
			_, err := pipeline.Run(ctx, []byte("%PDF"), media.PDF)
			Expect(err).NotTo(HaveOccurred())

			var stages []string
			for _, s := range recorder.Stages {
				stages = append(stages, s.Stage)
				Expect(s.Err).NotTo(HaveOccurred())
			}
			Expect(stages).To(Equal([]string{StageExtractText, StageTranslate, StageStructure, StageParse}))
		})

		It("accepts a reply wrapped in prose", func() {
			generator.Reply = `Here is your data: {"vendor":"X","total_amount":10.0,"items":[]} Thanks!`
			result, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Vendor).To(Equal("X"))
			Expect(result.Items).To(BeEmpty())
		})

		It("rejects unsupported kinds without calling collaborators", func() {
			_, err := pipeline.Run(ctx, []byte("GIF89a"), media.Kind("gif"))
			Expect(err).To(MatchError(apperr.ErrUnsupportedMedia))
			Expect(extractor.Calls).To(BeZero())
			Expect(translator.Calls).To(BeZero())
			Expect(generator.Calls).To(BeZero())
		})

		It("stops when text extraction fails", func() {
			extractor.Err = errors.New("quota exceeded")
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
			Expect(err.Error()).To(ContainSubstring("quota exceeded"))
			Expect(translator.Calls).To(BeZero())
			Expect(generator.Calls).To(BeZero())
			Expect(recorder.Stages).To(HaveLen(1))
			Expect(recorder.Stages[0].Err).To(HaveOccurred())
		})

		It("keeps unsupported media errors from the extractor", func() {
			extractor.Err = apperr.Unsupported("corrupt image")
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrUnsupportedMedia))
			Expect(errors.Is(err, apperr.ErrExternalService)).To(BeFalse())
		})

		It("stops when translation fails", func() {
			translator.Err = errors.New("translate down")
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
			Expect(generator.Calls).To(BeZero())
		})

		It("fails when the model call fails", func() {
			generator.Err = errors.New("model overloaded")
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
		})

		It("fails with malformed JSON when the reply has no object", func() {
			generator.Reply = "I cannot read this receipt."
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrMalformedJSON))
		})

		It("fails with malformed JSON when the object does not parse", func() {
			generator.Reply = "{vendor: 'X'}"
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrMalformedJSON))
		})

		It("times out a hanging collaborator", func() {
			extractor.Block = true
			pipeline = NewPipeline(extractor, translator, generator, WithCallTimeout(20*time.Millisecond))

			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).To(MatchError(apperr.ErrExternalService))
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(translator.Calls).To(BeZero())
		})
	})

	Describe("NewPipeline", func() {
		It("translates to English by default", func() {
			pipeline = NewPipeline(extractor, translator, generator)
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(translator.Targets).To(ConsistOf("en"))
		})

		It("passes text through without a translator", func() {
			pipeline = NewPipeline(extractor, nil, generator)
			_, err := pipeline.Run(ctx, []byte("jpeg"), media.Image)
			Expect(err).NotTo(HaveOccurred())
			Expect(generator.Prompts[0]).To(ContainSubstring("CAFE LUNA"))
			Expect(generator.Prompts[0]).NotTo(ContainSubstring("[en]"))
		})
	})
})

var _ = Describe("ByKind", func() {
	It("routes images and PDFs to their extractors", func() {
		images := &mockExtractor{Text: "image text"}
		pdfs := &mockExtractor{Text: "pdf text"}
		router := ByKind{Image: images, PDF: pdfs}

		text, err := router.ExtractText(context.Background(), nil, media.Image)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("image text"))

		text, err = router.ExtractText(context.Background(), nil, media.PDF)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("pdf text"))
	})

	It("rejects kinds without an extractor", func() {
		router := ByKind{Image: &mockExtractor{}}
		_, err := router.ExtractText(context.Background(), nil, media.PDF)
		Expect(err).To(MatchError(apperr.ErrUnsupportedMedia))
	})
})
