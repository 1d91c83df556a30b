package eventstream_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/eventstream"
)

var _ = Describe("NewTurnStoredEvent", func() {
	var msgs []conversation.Message

	BeforeEach(func() {
		answer := conversation.NewMessage(conversation.RoleAssistant, "hi")
		answer.Sources = []ask.Source{{Chunk: "doc", Score: 0.5, Index: 1}}
		msgs = []conversation.Message{
			conversation.NewMessage(conversation.RoleUser, "hello"),
			answer,
		}
	})

	It("fills the v1 envelope", func() {
		event := eventstream.NewTurnStoredEvent("thread-1", 4, msgs)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal("askstream.turn.stored"))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt.Location().String()).To(Equal("UTC"))
		Expect(event.Thread).To(Equal("thread-1"))
		Expect(event.Seq).To(Equal(4))
		Expect(event.Messages).To(Equal(msgs))
	})

	It("gives every event its own ID", func() {
		a := eventstream.NewTurnStoredEvent("t", 0, msgs)
		b := eventstream.NewTurnStoredEvent("t", 0, msgs)
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("snapshots the messages", func() {
		event := eventstream.NewTurnStoredEvent("t", 0, msgs)
		msgs[1].Sources[0].Chunk = "changed"
		Expect(event.Messages[1].Sources[0].Chunk).To(Equal("doc"))
	})

	It("marshals with the expected top-level keys", func() {
		payload, err := json.Marshal(eventstream.NewTurnStoredEvent("t", 0, msgs))
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("thread"))
		Expect(got).To(HaveKey("seq"))
		Expect(got).To(HaveKey("messages"))
	})

	It("provides ErrNilTurnEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
