package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/conversation/postgres"
)

var _ conversation.Driver = (*postgres.Driver)(nil)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("ASKSTREAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("ASKSTREAM_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		driver, err = postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		// Clean the test threads before each test for isolation.
		Expect(driver.Clear(ctx, "pg-t1")).To(Succeed())
		Expect(driver.Clear(ctx, "pg-t2")).To(Succeed())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("fails fast on an unreachable server", func() {
		_, err := postgres.NewDriver(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})

	It("stores and lists messages in position order", func() {
		answer := conversation.NewMessage(conversation.RoleAssistant, "Hello")
		answer.Sources = []ask.Source{{Chunk: "c", Score: 0.5, Index: 2}}
		question := conversation.NewMessage(conversation.RoleUser, "Hi?")

		Expect(driver.Put(ctx, "pg-t1", 1, answer)).To(Succeed())
		Expect(driver.Put(ctx, "pg-t1", 0, question)).To(Succeed())

		msgs, err := driver.List(ctx, "pg-t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Content).To(Equal("Hi?"))
		Expect(msgs[1].Sources).To(Equal(answer.Sources))
	})

	It("replaces a message stored twice", func() {
		msg := conversation.NewMessage(conversation.RoleAssistant, "partial")
		Expect(driver.Put(ctx, "pg-t1", 0, msg)).To(Succeed())

		msg.Content = "partial and complete"
		msg.Error = "connection reset"
		Expect(driver.Put(ctx, "pg-t1", 0, msg)).To(Succeed())

		msgs, err := driver.List(ctx, "pg-t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("partial and complete"))
		Expect(msgs[0].Error).To(Equal("connection reset"))
	})

	It("returns NotFoundError for an unknown thread", func() {
		_, err := driver.List(ctx, "pg-missing")
		Expect(err).To(MatchError(conversation.NotFoundError{Thread: "pg-missing"}))
	})

	It("lists threads and clears one", func() {
		Expect(driver.Put(ctx, "pg-t1", 0, conversation.NewMessage(conversation.RoleUser, "a"))).To(Succeed())
		Expect(driver.Put(ctx, "pg-t2", 0, conversation.NewMessage(conversation.RoleUser, "b"))).To(Succeed())

		threads, err := driver.Threads(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).To(ContainElements("pg-t1", "pg-t2"))

		Expect(driver.Clear(ctx, "pg-t1")).To(Succeed())
		_, err = driver.List(ctx, "pg-t1")
		Expect(err).To(HaveOccurred())
	})
})
