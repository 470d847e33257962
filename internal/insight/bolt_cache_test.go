package insight

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-insight/internal/apperr"
)

var _ = Describe("BoltCache", func() {
	var (
		ctx   context.Context
		cache *BoltCache
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "insights.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if cache != nil {
			cache.Close()
		}
	})

	putRaw := func(id string, data []byte) {
		err := cache.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(insightBucket)).Put([]byte(id), data)
		})
		Expect(err).NotTo(HaveOccurred())
	}

	It("round-trips a result", func() {
		want := cafeLuna()
		Expect(cache.Put(ctx, "r1", want)).To(Succeed())
		got, ok, err := cache.Get(ctx, "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Equal(want)).To(BeTrue())
	})

	It("reports a miss for unknown ids", func() {
		_, ok, err := cache.Get(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("reports corrupt entries as malformed", func() {
		putRaw("bad", []byte("nope"))
		_, _, err := cache.Get(ctx, "bad")
		Expect(errors.Is(err, apperr.ErrMalformedJSON)).To(BeTrue())
	})

	It("deletes idempotently", func() {
		Expect(cache.Put(ctx, "r1", cafeLuna())).To(Succeed())
		Expect(cache.Delete(ctx, "r1")).To(Succeed())
		Expect(cache.Delete(ctx, "r1")).To(Succeed())
		keys, err := cache.Keys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(BeEmpty())
	})

	It("skips corrupt entries in All", func() {
		for i := 0; i < 9; i++ {
			Expect(cache.Put(ctx, fmt.Sprintf("r%d", i), cafeLuna())).To(Succeed())
		}
		putRaw("r9", []byte(`{"items": [`))

		results, err := cache.All(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(9))

		keys, err := cache.Keys(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(HaveLen(10))
	})
})
