package session_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/session"
)

// recordingIndicator keeps every SetThinking call.
type recordingIndicator struct {
	calls []bool
}

func (r *recordingIndicator) SetThinking(thinking bool) {
	r.calls = append(r.calls, thinking)
}

func (r *recordingIndicator) thinking() bool {
	return len(r.calls) > 0 && r.calls[len(r.calls)-1]
}

func assistants(log *conversation.Log) []conversation.Message {
	var out []conversation.Message
	for _, m := range log.Messages() {
		if m.Role == conversation.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

var _ = Describe("State", func() {
	DescribeTable("String",
		func(s session.State, want string) {
			Expect(s.String()).To(Equal(want))
		},
		Entry("not started", session.NotStarted, "not-started"),
		Entry("waiting", session.Waiting, "waiting"),
		Entry("streaming", session.Streaming, "streaming"),
		Entry("idle", session.Idle, "idle"),
		Entry("unknown", session.State(9), "state(9)"),
	)
})

var _ = Describe("Accumulator", func() {
	var (
		log *conversation.Log
		ind *recordingIndicator
		acc *session.Accumulator
	)

	sourcesA := []ask.Source{{Chunk: "Doc A", Score: 0.9, Index: 0}}
	sourcesB := []ask.Source{{Chunk: "Doc B", Score: 0.7, Index: 1}}

	BeforeEach(func() {
		log = conversation.NewLog()
		ind = &recordingIndicator{}
		acc = session.NewAccumulator(log, ind)
	})

	It("starts in NotStarted with the indicator untouched", func() {
		Expect(acc.State()).To(Equal(session.NotStarted))
		Expect(ind.calls).To(BeEmpty())
	})

	It("rejects events before Begin", func() {
		Expect(acc.Apply(ask.TokenEvent{Delta: "x"})).To(MatchError(session.ErrNotStarted))
	})

	Describe("Begin", func() {
		It("moves to Waiting and asserts the indicator", func() {
			Expect(acc.Begin()).To(Succeed())
			Expect(acc.State()).To(Equal(session.Waiting))
			Expect(ind.thinking()).To(BeTrue())
		})

		It("can only be called once", func() {
			Expect(acc.Begin()).To(Succeed())
			Expect(acc.Begin()).NotTo(Succeed())
		})
	})

	Context("once begun", func() {
		BeforeEach(func() {
			Expect(acc.Begin()).To(Succeed())
		})

		It("stays Waiting on start without creating a message", func() {
			Expect(acc.Apply(ask.StartEvent{Sources: sourcesA})).To(Succeed())

			Expect(acc.State()).To(Equal(session.Waiting))
			Expect(ind.thinking()).To(BeTrue())
			Expect(log.Len()).To(Equal(0))
			Expect(acc.AssistantID()).To(BeEmpty())
		})

		It("creates the message on the first token and clears the indicator", func() {
			Expect(acc.Apply(ask.StartEvent{Sources: sourcesA})).To(Succeed())
			Expect(acc.Apply(ask.TokenEvent{Delta: "Hel"})).To(Succeed())

			Expect(acc.State()).To(Equal(session.Streaming))
			Expect(ind.thinking()).To(BeFalse())

			msgs := assistants(log)
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].ID).To(Equal(acc.AssistantID()))
			Expect(msgs[0].Content).To(Equal("Hel"))
			Expect(msgs[0].Sources).To(Equal(sourcesA))
		})

		It("gives a message created without start empty sources", func() {
			Expect(acc.Apply(ask.TokenEvent{Delta: "x"})).To(Succeed())

			msg := assistants(log)[0]
			Expect(msg.Sources).NotTo(BeNil())
			Expect(msg.Sources).To(BeEmpty())
		})

		It("appends later tokens without re-evaluating sources", func() {
			Expect(acc.Apply(ask.StartEvent{Sources: sourcesA})).To(Succeed())
			Expect(acc.Apply(ask.TokenEvent{Delta: "Hel"})).To(Succeed())
			Expect(acc.Apply(ask.StartEvent{Sources: sourcesB})).To(Succeed())
			Expect(acc.Apply(ask.TokenEvent{Delta: "lo"})).To(Succeed())

			msg := assistants(log)[0]
			Expect(msg.Content).To(Equal("Hello"))
			Expect(msg.Sources).To(Equal(sourcesA))
		})

		It("creates one message for two starts and five tokens", func() {
			events := []ask.Event{
				ask.StartEvent{Sources: sourcesA},
				ask.StartEvent{Sources: sourcesB},
				ask.TokenEvent{Delta: "a"},
				ask.TokenEvent{Delta: "b"},
				ask.TokenEvent{Delta: "c"},
				ask.TokenEvent{Delta: "d"},
				ask.TokenEvent{Delta: "e"},
			}
			for _, ev := range events {
				Expect(acc.Apply(ev)).To(Succeed())
			}

			msgs := assistants(log)
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Sources).To(Equal(sourcesB))
			Expect(msgs[0].Content).To(Equal("abcde"))
		})

		It("preserves token order across interleaved start and end events", func() {
			var want string
			for i := range 20 {
				switch i % 5 {
				case 1:
					Expect(acc.Apply(ask.StartEvent{Sources: sourcesB})).To(Succeed())
				case 3:
					Expect(acc.Apply(ask.EndEvent{})).To(Succeed())
				default:
					delta := fmt.Sprintf("[%d]", i)
					want += delta
					Expect(acc.Apply(ask.TokenEvent{Delta: delta})).To(Succeed())
				}
			}

			msgs := assistants(log)
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Content).To(Equal(want))
		})

		It("does not copy the caller's source slice", func() {
			src := []ask.Source{{Chunk: "Doc A"}}
			Expect(acc.Apply(ask.StartEvent{Sources: src})).To(Succeed())
			src[0].Chunk = "mutated"
			Expect(acc.Apply(ask.TokenEvent{Delta: "x"})).To(Succeed())

			Expect(assistants(log)[0].Sources[0].Chunk).To(Equal("Doc A"))
		})

		Describe("end", func() {
			It("moves Waiting to Idle without creating a message", func() {
				Expect(acc.Apply(ask.StartEvent{Sources: sourcesA})).To(Succeed())
				Expect(acc.Apply(ask.EndEvent{})).To(Succeed())

				Expect(acc.State()).To(Equal(session.Idle))
				Expect(ind.thinking()).To(BeFalse())
				Expect(log.Len()).To(Equal(0))
			})

			It("moves Streaming to Idle", func() {
				Expect(acc.Apply(ask.TokenEvent{Delta: "x"})).To(Succeed())
				Expect(acc.Apply(ask.EndEvent{})).To(Succeed())
				Expect(acc.State()).To(Equal(session.Idle))
			})

			It("still folds a token that follows end", func() {
				Expect(acc.Apply(ask.TokenEvent{Delta: "Hel"})).To(Succeed())
				Expect(acc.Apply(ask.EndEvent{})).To(Succeed())
				Expect(acc.Apply(ask.TokenEvent{Delta: "lo"})).To(Succeed())

				Expect(assistants(log)[0].Content).To(Equal("Hello"))
				Expect(acc.State()).To(Equal(session.Idle))
			})
		})

		Describe("Finish", func() {
			It("clears the indicator even if no token arrived", func() {
				acc.Finish()

				Expect(acc.State()).To(Equal(session.Idle))
				Expect(ind.thinking()).To(BeFalse())
				Expect(log.Len()).To(Equal(0))
			})

			It("closes the accumulator", func() {
				acc.Finish()
				Expect(acc.Apply(ask.TokenEvent{Delta: "late"})).To(MatchError(session.ErrClosed))
				Expect(log.Len()).To(Equal(0))
			})
		})

		Describe("Fail", func() {
			It("creates a message describing the failure when none exists", func() {
				acc.Fail(&ask.StatusError{StatusCode: 503, Body: "Service not ready"})

				Expect(acc.State()).To(Equal(session.Idle))
				Expect(ind.thinking()).To(BeFalse())

				msgs := assistants(log)
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Content).To(Equal("Service not ready"))
				Expect(msgs[0].Error).To(Equal("Service not ready"))
			})

			It("keeps accumulated content and attaches the error", func() {
				Expect(acc.Apply(ask.TokenEvent{Delta: "partial answer"})).To(Succeed())
				acc.Fail(errors.New("unexpected EOF"))

				msgs := assistants(log)
				Expect(msgs).To(HaveLen(1))
				Expect(msgs[0].Content).To(Equal("partial answer"))
				Expect(msgs[0].Error).To(Equal("unexpected EOF"))
			})

			It("closes the accumulator", func() {
				acc.Fail(errors.New("boom"))
				Expect(acc.Apply(ask.EndEvent{})).To(MatchError(session.ErrClosed))
			})
		})
	})

	It("accepts a nil indicator", func() {
		acc := session.NewAccumulator(log, nil)
		Expect(acc.Begin()).To(Succeed())
		Expect(acc.Apply(ask.TokenEvent{Delta: "x"})).To(Succeed())
		acc.Finish()
	})

	It("adapts a function as an indicator", func() {
		var got []bool
		acc := session.NewAccumulator(log, session.IndicatorFunc(func(b bool) { got = append(got, b) }))
		Expect(acc.Begin()).To(Succeed())
		acc.Finish()
		Expect(got).To(Equal([]bool{true, false}))
	})
})

var _ = Describe("Describe", func() {
	DescribeTable("failure descriptions",
		func(err error, want string) {
			Expect(session.Describe(err)).To(Equal(want))
		},
		Entry("nil", nil, ""),
		Entry("status body", fmt.Errorf("asking: %w", &ask.StatusError{StatusCode: 500, Body: "boom"}), "boom"),
		Entry("cancelled", context.Canceled, "request cancelled"),
		Entry("deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "request timed out"),
		Entry("other", errors.New("dial tcp: connection refused"), "dial tcp: connection refused"),
	)
})
