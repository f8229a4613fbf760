package receipt

import (
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Receipt", func() {
	Describe("decoding", func() {
		It("should accept the canonical layout", func() {
			var r Receipt
			err := json.Unmarshal([]byte(`{
				"id": "r1",
				"merchantName": "Acme",
				"totalAmount": 12.5,
				"tax": "0.75",
				"receiptDate": "2024-03-02T10:00:00Z",
				"originalFilename": "acme.jpg"
			}`), &r)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.MerchantName).To(Equal("Acme"))
			Expect(r.TotalAmount.Decimal.StringFixed(2)).To(Equal("12.50"))
			Expect(r.Tax.Decimal.StringFixed(2)).To(Equal("0.75"))
			Expect(r.ReceiptDate.String()).To(Equal("2024-03-02"))
			Expect(r.ExtractedData).To(BeNil())
		})

		It("should accept the legacy layout", func() {
			var r Receipt
			err := json.Unmarshal([]byte(`{
				"id": "r2",
				"fileUrl": "https://old/file.png",
				"fileName": "file.png",
				"extractedData": {"merchant": "Old Shop", "totalAmount": 7, "date": "last tuesday"}
			}`), &r)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.TotalAmount.Valid).To(BeFalse())
			legacy := r.Legacy()
			Expect(legacy.Merchant).To(Equal("Old Shop"))
			Expect(legacy.TotalAmount.Decimal.StringFixed(2)).To(Equal("7.00"))
			Expect(legacy.Date.IsTime()).To(BeFalse())
			Expect(legacy.Date.String()).To(Equal("last tuesday"))
		})

		It("should return an empty legacy block when absent", func() {
			var r *Receipt
			Expect(r.Legacy().Merchant).To(BeEmpty())
		})
	})

	Describe("Date", func() {
		It("should parse plain dates", func() {
			d := ParseDate("2024-01-15")
			Expect(d.IsTime()).To(BeTrue())
			Expect(d.Time).To(Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
		})

		It("should use the local calendar date of a timestamp", func() {
			d := ParseDate("2024-03-05T23:30:00-05:00")
			Expect(d.IsTime()).To(BeTrue())
			Expect(d.String()).To(Equal("2024-03-05"))
		})

		It("should read back what it writes", func() {
			b, err := json.Marshal(ParseDate("2024-01-15"))
			Expect(err).NotTo(HaveOccurred())
			var d Date
			Expect(json.Unmarshal(b, &d)).To(Succeed())
			Expect(d.String()).To(Equal("2024-01-15"))
		})

		It("should keep unparseable text verbatim", func() {
			d := ParseDate("15/01/2024")
			Expect(d.IsTime()).To(BeFalse())
			Expect(d.String()).To(Equal("15/01/2024"))
		})

		It("should encode empty dates as null", func() {
			b, err := json.Marshal(Date{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(Equal("null"))
			Expect(Date{Text: "  "}.IsZero()).To(BeTrue())
		})
	})
})

var _ = Describe("ParseExtraction", func() {
	var (
		data []byte
		ext  *Extraction
		err  error
	)

	JustBeforeEach(func() {
		schema, compileErr := compileExtractionSchema()
		Expect(compileErr).NotTo(HaveOccurred())
		ext, err = ParseExtraction(schema, data)
	})

	When("the data is empty", func() {
		BeforeEach(func() {
			data = []byte("  ")
		})

		It("should return an empty extraction", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(ext.MerchantName).To(BeEmpty())
			Expect(ext.TotalAmount.Valid).To(BeFalse())
		})
	})

	When("fields are null", func() {
		BeforeEach(func() {
			data = []byte(`{"merchantName": null, "totalAmount": null, "receiptDate": null}`)
		})

		It("should accept them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(ext.ReceiptDate.IsZero()).To(BeTrue())
		})
	})

	When("an unknown field is present", func() {
		BeforeEach(func() {
			data = []byte(`{"merchantName": "A", "confidence": 0.9}`)
		})

		It("should reject the data", func() {
			Expect(errors.Is(err, ErrInvalidExtraction)).To(BeTrue())
		})
	})

	When("the currency is not a code", func() {
		BeforeEach(func() {
			data = []byte(`{"currency": "rupees"}`)
		})

		It("should reject the data", func() {
			Expect(errors.Is(err, ErrInvalidExtraction)).To(BeTrue())
		})
	})

	When("the payload is not JSON", func() {
		BeforeEach(func() {
			data = []byte(`not json`)
		})

		It("should reject the data", func() {
			Expect(errors.Is(err, ErrInvalidExtraction)).To(BeTrue())
		})
	})
})
