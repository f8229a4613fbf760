package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rabbitmq/amqp091-go"
)

func TestEvents(t *testing.T) {
	// Disable logging during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

// mockChannel records declarations and publishes
type mockChannel struct {
	declared   []string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	if m.declareErr != nil {
		return m.declareErr
	}
	Expect(kind).To(Equal("direct"))
	Expect(durable).To(BeTrue())
	m.declared = append(m.declared, name)
	return nil
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("AMQPPublisher", func() {
	var (
		ch        *mockChannel
		publisher *AMQPPublisher
	)

	BeforeEach(func() {
		ch = &mockChannel{}
		var err error
		publisher, err = newAMQPPublisher(ch, "expenses")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should declare the exchange", func() {
		Expect(ch.declared).To(Equal([]string{"expenses"}))
	})

	It("should publish persistent json routed by type", func() {
		e := NewReportGenerated("555", "itemized", "expense_report_555.csv", "https://x/reports/a.csv", 3, "19.50")
		Expect(publisher.Publish(context.Background(), e)).To(Succeed())

		Expect(ch.published).To(HaveLen(1))
		p := ch.published[0]
		Expect(p.exchange).To(Equal("expenses"))
		Expect(p.key).To(Equal(TypeReportGenerated))
		Expect(p.msg.DeliveryMode).To(Equal(amqp091.Persistent))
		Expect(p.msg.ContentType).To(Equal("application/json"))

		var decoded Event
		Expect(json.Unmarshal(p.msg.Body, &decoded)).To(Succeed())
		Expect(decoded.PhoneNumber).To(Equal("555"))
		Expect(decoded.Receipts).To(Equal(3))
		Expect(decoded.Total).To(Equal("19.50"))
	})

	It("should wrap publish failures", func() {
		ch.publishErr = errors.New("channel closed")
		err := publisher.Publish(context.Background(), NewReportGenerated("555", "summary", "s.csv", "", 0, "0.00"))
		Expect(err).To(MatchError(ContainSubstring("publish event")))
	})

	It("should close the channel", func() {
		Expect(publisher.Close()).To(Succeed())
		Expect(ch.closed).To(BeTrue())
	})

	When("the exchange cannot be declared", func() {
		It("should return an error", func() {
			_, err := newAMQPPublisher(&mockChannel{declareErr: errors.New("denied")}, "x")
			Expect(err).To(MatchError(ContainSubstring("declare exchange")))
		})
	})
})

var _ = Describe("NopPublisher", func() {
	It("should accept events", func() {
		var p Publisher = NopPublisher{}
		Expect(p.Publish(context.Background(), &Event{})).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})
