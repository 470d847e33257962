package insight

import (
	"context"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-insight/internal/apperr"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>insights/missing.json</Key></Error>`

const listXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>receipts</Name>
  <Prefix>insights/</Prefix>
  <KeyCount>3</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>insights/a.pdf.json</Key><Size>10</Size></Contents>
  <Contents><Key>insights/b.png.json</Key><Size>10</Size></Contents>
  <Contents><Key>insights/readme.txt</Key><Size>10</Size></Contents>
</ListBucketResult>`

var _ = Describe("S3Cache", func() {
	var (
		ctx    context.Context
		server *ghttp.Server
		cache  *S3Cache
	)

	BeforeEach(func() {
		ctx = context.Background()
		server = ghttp.NewServer()
		var err error
		cache, err = NewS3Cache(ctx, S3Options{
			Endpoint:        server.URL(),
			Region:          "us-east-1",
			Bucket:          "receipts",
			Prefix:          "insights/",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			UsePathStyle:    true,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("requires a bucket", func() {
		_, err := NewS3Cache(ctx, S3Options{})
		Expect(err).To(MatchError("s3 bucket is required"))
	})

	Describe("Put", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPut, "/receipts/insights/r1.pdf.json"),
				ghttp.VerifyHeaderKV("Content-Type", "application/json"),
				ghttp.RespondWith(http.StatusOK, nil),
			))
		})

		It("uploads the JSON document", func() {
			Expect(cache.Put(ctx, "r1.pdf", cafeLuna())).To(Succeed())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	Describe("Get", func() {
		When("the object exists", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/receipts/insights/r1.pdf.json"),
					ghttp.RespondWith(http.StatusOK, `{"vendor":"Cafe Luna","date":"12-01-2024","total_amount":450,"items":[]}`),
				))
			})

			It("decodes the result", func() {
				got, ok, err := cache.Get(ctx, "r1.pdf")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(got.Vendor).To(Equal("Cafe Luna"))
				Expect(got.TotalAmount.String()).To(Equal("450"))
			})
		})

		When("the object is missing", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/receipts/insights/missing.json"),
					ghttp.RespondWith(http.StatusNotFound, noSuchKeyXML, http.Header{"Content-Type": []string{"application/xml"}}),
				))
			})

			It("reports a miss", func() {
				_, ok, err := cache.Get(ctx, "missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeFalse())
			})
		})

		When("the object is corrupt", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"vendor":`))
			})

			It("returns a malformed JSON error", func() {
				_, _, err := cache.Get(ctx, "bad")
				Expect(errors.Is(err, apperr.ErrMalformedJSON)).To(BeTrue())
			})
		})
	})

	Describe("Keys", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/receipts"),
				ghttp.RespondWith(http.StatusOK, listXML, http.Header{"Content-Type": []string{"application/xml"}}),
			))
		})

		It("returns ids for JSON objects under the prefix", func() {
			keys, err := cache.Keys(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(ConsistOf("a.pdf", "b.png"))
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodDelete, "/receipts/insights/r1.json"),
				ghttp.RespondWith(http.StatusNoContent, nil),
			))
		})

		It("removes the object", func() {
			Expect(cache.Delete(ctx, "r1")).To(Succeed())
		})
	})
})
