package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"
)

var _ = Describe("BoltDB", func() {
	var (
		bolt *bbolt.DB
		db   *BoltDB
	)

	BeforeEach(func() {
		var err error
		bolt, err = bbolt.Open(filepath.Join(GinkgoT().TempDir(), "test.db"), 0600, nil)
		Expect(err).NotTo(HaveOccurred())
		db, err = NewBoltDB(bolt)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if bolt != nil {
			bolt.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = &Receipt{
				ID:           "test-id",
				PhoneNumber:  "555",
				MerchantName: "Corner Store",
				TotalAmount:  decimal.NewNullDecimal(decimal.RequireFromString("25.99")),
				ReceiptDate:  NewDate(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
				CreatedAt:    time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the receipt", func() {
				got, getErr := db.GetReceipt("555", "test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(got.MerchantName).To(Equal("Corner Store"))
				Expect(got.TotalAmount.Decimal.Equal(decimal.RequireFromString("25.99"))).To(BeTrue())
				Expect(got.ReceiptDate.String()).To(Equal("2024-01-15"))
			})
		})

		When("the receipt has no owner", func() {
			BeforeEach(func() {
				receipt.PhoneNumber = ""
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("GetReceipt", func() {
		When("the receipt does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetReceipt("555", "missing")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListReceipts", func() {
		BeforeEach(func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveReceipt(&Receipt{ID: "b", PhoneNumber: "555", CreatedAt: base.Add(2 * time.Hour)})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "a", PhoneNumber: "555", CreatedAt: base.Add(time.Hour)})).To(Succeed())
			Expect(db.SaveReceipt(&Receipt{ID: "c", PhoneNumber: "5556", CreatedAt: base})).To(Succeed())
		})

		It("should only return the user's receipts, oldest first", func() {
			receipts, err := db.ListReceipts("555")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
			Expect(receipts[0].ID).To(Equal("a"))
			Expect(receipts[1].ID).To(Equal("b"))
		})

		It("should return an empty list for unknown users", func() {
			receipts, err := db.ListReceipts("999")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})
	})

	Describe("DeleteReceipt", func() {
		It("should remove the receipt", func() {
			Expect(db.SaveReceipt(&Receipt{ID: "x", PhoneNumber: "555"})).To(Succeed())
			Expect(db.DeleteReceipt("555", "x")).To(Succeed())
			_, err := db.GetReceipt("555", "x")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})
})
