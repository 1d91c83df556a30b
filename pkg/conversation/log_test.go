package conversation_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
)

var _ = Describe("Message", func() {
	It("gets a unique ID and a UTC timestamp", func() {
		a := conversation.NewMessage(conversation.RoleUser, "one")
		b := conversation.NewMessage(conversation.RoleUser, "one")

		Expect(a.ID).NotTo(BeEmpty())
		Expect(a.ID).NotTo(Equal(b.ID))
		Expect(a.CreatedAt.Location().String()).To(Equal("UTC"))
	})

	It("clones sources", func() {
		m := conversation.NewMessage(conversation.RoleAssistant, "")
		m.Sources = []ask.Source{{Chunk: "doc"}}

		c := m.Clone()
		c.Sources[0].Chunk = "other"
		Expect(m.Sources[0].Chunk).To(Equal("doc"))
	})
})

var _ = Describe("Log", func() {
	var (
		log     *conversation.Log
		changes []conversation.Change
	)

	BeforeEach(func() {
		log = conversation.NewLog()
		changes = nil
		log.Watch(func(c conversation.Change) {
			changes = append(changes, c)
		})
	})

	Describe("NewLog", func() {
		It("seeds the log in order", func() {
			q := conversation.NewMessage(conversation.RoleUser, "q")
			a := conversation.NewMessage(conversation.RoleAssistant, "a")

			l := conversation.NewLog(q, a)
			Expect(l.Len()).To(Equal(2))
			Expect(l.Messages()[0].ID).To(Equal(q.ID))

			got, ok := l.Get(a.ID)
			Expect(ok).To(BeTrue())
			Expect(got.Content).To(Equal("a"))
		})
	})

	Describe("Append", func() {
		It("adds messages in order and notifies watchers", func() {
			q := conversation.NewMessage(conversation.RoleUser, "What is RAG?")
			Expect(log.Append(q)).To(BeTrue())

			Expect(log.Len()).To(Equal(1))
			Expect(changes).To(HaveLen(1))
			Expect(changes[0].Kind).To(Equal(conversation.Appended))
			Expect(changes[0].Message.ID).To(Equal(q.ID))
		})

		It("rejects a duplicate ID", func() {
			q := conversation.NewMessage(conversation.RoleUser, "q")
			Expect(log.Append(q)).To(BeTrue())
			Expect(log.Append(q)).To(BeFalse())

			Expect(log.Len()).To(Equal(1))
			Expect(changes).To(HaveLen(1))
		})
	})

	Describe("AppendContent", func() {
		It("concatenates deltas and reports each one", func() {
			a := conversation.NewMessage(conversation.RoleAssistant, "He")
			log.Append(a)

			Expect(log.AppendContent(a.ID, "llo")).To(Succeed())
			Expect(log.AppendContent(a.ID, "!")).To(Succeed())

			got, _ := log.Get(a.ID)
			Expect(got.Content).To(Equal("Hello!"))

			Expect(changes).To(HaveLen(3))
			Expect(changes[1].Kind).To(Equal(conversation.Updated))
			Expect(changes[1].Delta).To(Equal("llo"))
			Expect(changes[2].Message.Content).To(Equal("Hello!"))
		})

		It("fails for an unknown message", func() {
			err := log.AppendContent("nope", "x")
			Expect(err).To(MatchError(conversation.MessageNotFoundError{ID: "nope"}))
			Expect(changes).To(BeEmpty())
		})
	})

	Describe("SetError", func() {
		It("records the failure without touching content", func() {
			a := conversation.NewMessage(conversation.RoleAssistant, "partial")
			log.Append(a)

			Expect(log.SetError(a.ID, "unexpected EOF")).To(Succeed())

			got, _ := log.Get(a.ID)
			Expect(got.Content).To(Equal("partial"))
			Expect(got.Error).To(Equal("unexpected EOF"))
		})
	})

	Describe("copies", func() {
		It("does not expose internal state", func() {
			a := conversation.NewMessage(conversation.RoleAssistant, "x")
			log.Append(a)

			msgs := log.Messages()
			msgs[0].Content = "mutated"

			got, _ := log.Get(a.ID)
			Expect(got.Content).To(Equal("x"))
		})
	})

	It("delivers concurrent mutations in the order they were applied", func() {
		a := conversation.NewMessage(conversation.RoleAssistant, "")
		log.Append(a)

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = log.AppendContent(a.ID, "x")
			}()
		}
		wg.Wait()

		Expect(changes).To(HaveLen(51))
		for i, c := range changes[1:] {
			Expect(c.Message.Content).To(HaveLen(i + 1))
		}
	})
})
