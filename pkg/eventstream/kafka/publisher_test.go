package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/eventstream"
)

// recordingWriter captures written messages in place of a broker.
type recordingWriter struct {
	msgs     []kafkago.Message
	deadline time.Time
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.deadline, _ = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)

var _ = Describe("NewPublisher", func() {
	It("requires brokers", func() {
		_, err := NewPublisher(Config{Topic: "turns"})
		Expect(err).To(MatchError(eventstream.ErrNoBrokers))
	})

	It("requires a topic", func() {
		_, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(eventstream.ErrNoTopic))
	})

	It("configures a hash balanced writer", func() {
		p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "turns"})
		Expect(err).NotTo(HaveOccurred())

		w, ok := p.writer.(*kafkago.Writer)
		Expect(ok).To(BeTrue())
		Expect(w.Topic).To(Equal("turns"))
		Expect(w.Balancer).To(BeAssignableToTypeOf(&kafkago.Hash{}))
		Expect(p.timeout).To(Equal(defaultWriteTimeout))
	})
})

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = newPublisher(w, Config{WriteTimeout: time.Second})
	})

	It("writes the event as JSON keyed by thread", func() {
		msgs := []conversation.Message{conversation.NewMessage(conversation.RoleUser, "hello")}
		event := eventstream.NewTurnStoredEvent("thread-1", 2, msgs)

		Expect(p.PublishTurn(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))
		Expect(string(w.msgs[0].Key)).To(Equal("thread-1"))
		Expect(w.msgs[0].Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("askstream.turn.stored")}))

		var got eventstream.TurnStoredEvent
		Expect(json.Unmarshal(w.msgs[0].Value, &got)).To(Succeed())
		Expect(got.EventID).To(Equal(event.EventID))
		Expect(got.Seq).To(Equal(2))
		Expect(got.Messages[0].Content).To(Equal("hello"))
	})

	It("bounds every write with the timeout", func() {
		start := time.Now()
		Expect(p.PublishTurn(context.Background(), eventstream.NewTurnStoredEvent("t", 0, nil))).To(Succeed())
		Expect(w.deadline).To(BeTemporally("~", start.Add(time.Second), 500*time.Millisecond))
	})

	It("rejects nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("wraps write failures", func() {
		w.err = errors.New("leader not available")
		err := p.PublishTurn(context.Background(), eventstream.NewTurnStoredEvent("t", 0, nil))
		Expect(err).To(MatchError(ContainSubstring("leader not available")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
