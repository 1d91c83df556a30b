package chatcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	askstreamcmder "github.com/papercomputeco/askstream/cmd/askstream"
	chatcmder "github.com/papercomputeco/askstream/cmd/askstream/chat"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/conversation/sqlite"
	"github.com/papercomputeco/askstream/pkg/dotdir"
	testutils "github.com/papercomputeco/askstream/pkg/utils/test"
)

var _ = Describe("NewChatCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Use).To(Equal("chat"))
	})

	It("has thread selection flags", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Flags().Lookup("thread")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("new").DefValue).To(Equal("false"))
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
	})

	It("has --sqlite flag with no default", func() {
		cmd := chatcmder.NewChatCmd()
		flag := cmd.Flags().Lookup("sqlite")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("s"))
		Expect(flag.DefValue).To(BeEmpty())
	})

	It("has storage and publishing flags", func() {
		cmd := chatcmder.NewChatCmd()
		Expect(cmd.Flags().Lookup("postgres").DefValue).To(BeEmpty())
		Expect(cmd.Flags().Lookup("kafka-brokers").DefValue).To(BeEmpty())
		Expect(cmd.Flags().Lookup("kafka-topic").DefValue).To(Equal("askstream.turns"))
	})
})

var _ = Describe("Chat command execution", func() {
	var (
		server *httptest.Server
		tmpDir string
		dbPath string
		out    *bytes.Buffer
		errOut *bytes.Buffer
	)

	execute := func(input string, args ...string) error {
		cmd := askstreamcmder.NewAskstreamCmd()
		cmd.SetIn(strings.NewReader(input))
		cmd.SetOut(out)
		cmd.SetErr(errOut)
		cmd.SetArgs(append([]string{"chat", "--target", server.URL, "--sqlite", dbPath}, args...))
		return cmd.Execute()
	}

	storedThread := func() (string, []conversation.Message) {
		state, err := dotdir.NewManager().LoadThreadState("")
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())

		driver, err := sqlite.NewDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		msgs, err := driver.List(context.Background(), state.ID)
		Expect(err).NotTo(HaveOccurred())
		return state.ID, msgs
	}

	BeforeEach(func() {
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tmpDir = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", tmpDir)
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() {
			Expect(os.Chdir(origDir)).To(Succeed())
		})

		dbPath = filepath.Join(tmpDir, "askstream.db")
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		server = httptest.NewServer(testutils.StreamChunks(testutils.HelloChunks...))
	})

	AfterEach(func() {
		server.Close()
	})

	It("answers each line and persists the thread", func() {
		Expect(execute("Say hello\n\nAgain\n/exit\n")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("New conversation"))
		Expect(strings.Count(out.String(), "Hello\n")).To(Equal(2))

		_, msgs := storedThread()
		Expect(msgs).To(HaveLen(4))
		Expect(msgs[0].Role).To(Equal(conversation.RoleUser))
		Expect(msgs[0].Content).To(Equal("Say hello"))
		Expect(msgs[1].Role).To(Equal(conversation.RoleAssistant))
		Expect(msgs[1].Content).To(Equal("Hello"))
		Expect(msgs[2].Content).To(Equal("Again"))
	})

	It("resumes the last thread", func() {
		Expect(execute("Say hello\n")).To(Succeed())
		firstID, _ := storedThread()

		out.Reset()
		Expect(execute("Again\n")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Resuming thread"))
		Expect(out.String()).To(ContainSubstring("(2 messages)"))

		id, msgs := storedThread()
		Expect(id).To(Equal(firstID))
		Expect(msgs).To(HaveLen(4))
	})

	It("starts a new thread with --new", func() {
		Expect(execute("Say hello\n")).To(Succeed())
		firstID, _ := storedThread()

		out.Reset()
		Expect(execute("Again\n", "--new")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("New conversation"))

		id, msgs := storedThread()
		Expect(id).NotTo(Equal(firstID))
		Expect(msgs).To(HaveLen(2))
	})

	It("uses the thread given with --thread", func() {
		Expect(execute("Say hello\n", "--thread", "named")).To(Succeed())

		id, msgs := storedThread()
		Expect(id).To(Equal("named"))
		Expect(msgs).To(HaveLen(2))
	})

	It("keeps chatting after a failed answer", func() {
		server.Close()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Service not ready", http.StatusServiceUnavailable)
		}))

		Expect(execute("first\nsecond\n")).To(Succeed())
		Expect(strings.Count(errOut.String(), "Service not ready")).To(Equal(2))

		_, msgs := storedThread()
		Expect(msgs).To(HaveLen(4))
		Expect(msgs[1].Error).To(Equal("Service not ready"))
	})

	It("fails when the PostgreSQL server is unreachable", func() {
		err := execute("Say hello\n", "--postgres", "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(MatchError(ContainSubstring("PostgreSQL")))
	})

	It("writes JSON logs to --log-file", func() {
		logFile := filepath.Join(tmpDir, "chat.log")
		Expect(execute("Say hello\n", "--log-file", logFile)).To(Succeed())

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).NotTo(BeEmpty())
		var record map[string]any
		Expect(json.Unmarshal([]byte(lines[0]), &record)).To(Succeed())
		Expect(record).To(HaveKey("msg"))
	})
})
