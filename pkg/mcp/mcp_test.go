package mcp

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/logger"
)

// scriptedClient replays a fixed event sequence for every question.
type scriptedClient struct {
	events    []ask.Event
	err       error
	questions []string
	block     chan struct{}
}

func (c *scriptedClient) Stream(ctx context.Context, question string, handle ask.Handler, _ ...ask.StreamOption) (ask.Summary, error) {
	c.questions = append(c.questions, question)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ask.Summary{}, ctx.Err()
		}
	}
	for _, ev := range c.events {
		if err := handle(ev); err != nil {
			return ask.Summary{}, err
		}
	}
	return ask.Summary{Events: len(c.events)}, c.err
}

func textOf(result *mcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		client *scriptedClient
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &scriptedClient{
			events: []ask.Event{
				ask.StartEvent{Sources: []ask.Source{{Chunk: "RAG pairs retrieval with generation.", Score: 0.9, Index: 1}}},
				ask.TokenEvent{Delta: "Retrieval "},
				ask.TokenEvent{Delta: "augmented."},
				ask.EndEvent{},
			},
		}

		var err error
		server, err = NewServer(Config{Client: client, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the client is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("ask client is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Client: client})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("mounts the handler on a fiber app", func() {
			app := fiber.New()
			server.Mount(app, "/mcp")

			paths := []string{}
			for _, r := range app.GetRoutes() {
				paths = append(paths, r.Path)
			}
			Expect(paths).To(ContainElement("/mcp"))
		})
	})

	Describe("ask tool", func() {
		It("returns the folded answer with its sources", func() {
			result, output, err := server.handleAsk(ctx, nil, AskInput{Question: "What is RAG?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Answer).To(Equal("Retrieval augmented."))
			Expect(output.Sources).To(HaveLen(1))
			Expect(textOf(result)).To(ContainSubstring(`"answer":"Retrieval augmented."`))
		})

		It("returns an empty answer when no token arrived", func() {
			client.events = []ask.Event{ask.StartEvent{Sources: []ask.Source{}}, ask.EndEvent{}}

			result, output, err := server.handleAsk(ctx, nil, AskInput{Question: "Anything?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Answer).To(BeEmpty())
			Expect(output.Sources).To(BeEmpty())
		})

		It("rejects an empty question without asking", func() {
			result, _, err := server.handleAsk(ctx, nil, AskInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(client.questions).To(BeEmpty())
		})

		It("reports transport failures as tool errors", func() {
			client.err = &ask.StatusError{StatusCode: 503, Body: "Service not ready"}

			result, _, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(Equal("Ask failed: Service not ready"))
		})

		It("keeps a named thread across calls", func() {
			_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "one", Thread: "t1"})
			Expect(err).NotTo(HaveOccurred())
			_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "two", Thread: "t1"})
			Expect(err).NotTo(HaveOccurred())

			Expect(server.thread("t1").Messages()).To(HaveLen(4))
		})

		It("does not remember anonymous threads", func() {
			_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "one"})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.threads).To(BeEmpty())
		})

		It("rejects a second question on a busy thread", func() {
			client.block = make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				result, _, err := server.handleAsk(ctx, nil, AskInput{Question: "slow", Thread: "busy"})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.IsError).To(BeFalse())
			}()

			Eventually(func() int {
				return len(server.thread("busy").Messages())
			}).Should(BeNumerically(">=", 1))

			result, _, err := server.handleAsk(ctx, nil, AskInput{Question: "fast", Thread: "busy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("already in flight"))

			close(client.block)
			Eventually(done).Should(BeClosed())
		})
	})
})
