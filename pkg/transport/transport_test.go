package transport_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/testutil"
	"github.com/killallgit/vivu/pkg/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transport Suite")
}

const model = "gemma3:4b"

// collect runs one session to the end and returns its snapshots and errors.
func collect(t stream.Transport, req chat.ChatRequest) ([]stream.Snapshot, []error) {
	var (
		mu    sync.Mutex
		snaps []stream.Snapshot
		errs  []error
	)
	s := stream.Start(context.Background(), t, req,
		func(s stream.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			snaps = append(snaps, s)
		},
		func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
	)
	Eventually(s.Done(), 2*time.Second).Should(BeClosed())
	mu.Lock()
	defer mu.Unlock()
	return snaps, errs
}

func readEvents(body io.Reader) []stream.Event {
	var events []stream.Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		if ev := stream.ParseLine(scanner.Text()); ev != nil {
			events = append(events, ev)
		}
	}
	return events
}

var _ = Describe("HTTPTransport", func() {
	var (
		server   *httptest.Server
		handler  http.HandlerFunc
		received struct {
			sync.Mutex
			header http.Header
			body   chat.ChatRequest
			method string
		}
		request chat.ChatRequest
	)

	BeforeEach(func() {
		request = chat.NewChatRequest(model, []chat.Message{chat.NewUserMessage("hi")})
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			for _, line := range []string{
				testutil.ChunkLine(model, "<think>pondering", false),
				testutil.ChunkLine(model, "</think>Hello ", false),
				testutil.ChunkLine(model, " world", false),
				testutil.FinalLine(model, 1500*time.Millisecond, 3),
			} {
				io.WriteString(w, line+"\n\n")
				w.(http.Flusher).Flush()
			}
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Lock()
			received.header = r.Header.Clone()
			received.method = r.Method
			_ = json.NewDecoder(r.Body).Decode(&received.body)
			received.Unlock()
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should post the request as JSON and ask for an event stream", func() {
		t := transport.NewHTTP(server.URL+"/api/ollama/chat/stream", transport.WithToken("secret"))

		body, err := t.Open(context.Background(), request)
		Expect(err).NotTo(HaveOccurred())
		defer body.Close()
		Expect(readEvents(body)).To(HaveLen(4))

		received.Lock()
		defer received.Unlock()
		Expect(received.method).To(Equal(http.MethodPost))
		Expect(received.header.Get("Content-Type")).To(Equal("application/json"))
		Expect(received.header.Get("Accept")).To(Equal("text/event-stream"))
		Expect(received.header.Get("Authorization")).To(Equal("Bearer secret"))
		Expect(received.body).To(Equal(request))
	})

	It("should leave out the auth header without a token", func() {
		t := transport.NewHTTP(server.URL, transport.WithToken(""))

		body, err := t.Open(context.Background(), request)
		Expect(err).NotTo(HaveOccurred())
		body.Close()

		received.Lock()
		defer received.Unlock()
		Expect(received.header.Get("Authorization")).To(BeEmpty())
	})

	It("should ask the auth func on every open", func() {
		calls := 0
		t := transport.NewHTTP(server.URL, transport.WithAuth(func() string {
			calls++
			return "Token fresh"
		}))

		body, err := t.Open(context.Background(), request)
		Expect(err).NotTo(HaveOccurred())
		body.Close()

		Expect(calls).To(Equal(1))
		received.Lock()
		defer received.Unlock()
		Expect(received.header.Get("Authorization")).To(Equal("Token fresh"))
	})

	It("should report non-2xx answers as status errors", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "token expired", http.StatusUnauthorized)
		}
		t := transport.NewHTTP(server.URL)

		_, err := t.Open(context.Background(), request)

		Expect(err).To(MatchError(transport.ErrStatus))
		var statusErr *transport.StatusError
		Expect(errors.As(err, &statusErr)).To(BeTrue())
		Expect(statusErr.Code).To(Equal(http.StatusUnauthorized))
		Expect(statusErr.Body).To(Equal("token expired"))
	})

	It("should fail to open against a dead server", func() {
		server.Close()
		t := transport.NewHTTP(server.URL)

		_, err := t.Open(context.Background(), request)
		Expect(err).To(HaveOccurred())
	})

	It("should drive a full session", func() {
		t := transport.NewHTTP(server.URL)

		snaps, errs := collect(t, request)

		Expect(errs).To(BeEmpty())
		Expect(snaps).NotTo(BeEmpty())
		final := snaps[len(snaps)-1]
		Expect(final.IsFinal).To(BeTrue())
		Expect(final.AnswerText).To(Equal("Hello  world"))
		Expect(final.ReasoningText).To(Equal("pondering"))
		Expect(final.EvalCount).To(Equal(3))
		Expect(final.TotalDuration).To(Equal(1500 * time.Millisecond))
	})

	It("should surface a refused stream through the error callback", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}
		t := transport.NewHTTP(server.URL)

		snaps, errs := collect(t, request)

		Expect(snaps).To(BeEmpty())
		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(transport.ErrStatus))
	})
})

var _ = Describe("LLMTransport", func() {
	var (
		llm     *testutil.FakeLLM
		request chat.ChatRequest
	)

	BeforeEach(func() {
		llm = testutil.NewFakeLLM("<think>let me see</think>The answer is 42")
		request = chat.NewChatRequest(model, []chat.Message{
			chat.NewSystemMessage("be brief"),
			chat.NewUserMessage("what is it?"),
			chat.NewAssistantMessage("hmm"),
			chat.NewUserMessage("well?"),
		})
	})

	It("should encode streamed chunks as event lines", func() {
		t := transport.NewLLMTransport(llm, "")

		body, err := t.Open(context.Background(), request)
		Expect(err).NotTo(HaveOccurred())
		events := readEvents(body)
		body.Close()

		var text strings.Builder
		for _, ev := range events[:len(events)-1] {
			data, ok := ev.(stream.DataEvent)
			Expect(ok).To(BeTrue())
			Expect(data.Model).To(Equal(model))
			Expect(data.Done).To(BeFalse())
			Expect(data.CreatedAt).NotTo(BeEmpty())
			text.WriteString(data.Content)
		}
		Expect(text.String()).To(Equal("<think>let me see</think>The answer is 42"))

		last, ok := events[len(events)-1].(stream.DataEvent)
		Expect(ok).To(BeTrue())
		Expect(last.Done).To(BeTrue())
		Expect(last.HasContent).To(BeFalse())
		Expect(last.EvalCount).To(Equal(len(testutil.Words("<think>let me see</think>The answer is 42"))))

		Expect(llm.GetLastModel()).To(Equal(model))
		Expect(llm.GetLastMessages()).To(HaveLen(4))
	})

	It("should fall back to its own model name", func() {
		t := transport.NewLLMTransport(llm, "llama3:8b")

		body, err := t.Open(context.Background(), chat.NewChatRequest("", []chat.Message{chat.NewUserMessage("hi")}))
		Expect(err).NotTo(HaveOccurred())
		events := readEvents(body)
		body.Close()

		Expect(events).NotTo(BeEmpty())
		Expect(events[0].(stream.DataEvent).Model).To(Equal("llama3:8b"))
		Expect(llm.GetLastModel()).To(Equal("llama3:8b"))
	})

	It("should refuse an empty conversation", func() {
		t := transport.NewLLMTransport(llm, model)

		_, err := t.Open(context.Background(), chat.ChatRequest{Model: model})
		Expect(err).To(HaveOccurred())
	})

	It("should drive a full session with reasoning", func() {
		t := transport.NewLLMTransport(llm, model)

		snaps, errs := collect(t, request)

		Expect(errs).To(BeEmpty())
		final := snaps[len(snaps)-1]
		Expect(final.IsFinal).To(BeTrue())
		Expect(final.AnswerText).To(Equal("The answer is 42"))
		Expect(final.ReasoningText).To(Equal("let me see"))

		closing := 0
		for _, s := range snaps {
			if s.ReasoningElapsed != nil {
				closing++
				Expect(s.IsReasoningActive).To(BeFalse())
			}
		}
		Expect(closing).To(Equal(1), "elapsed is reported once, when reasoning closes")
	})

	It("should turn a generation failure into an error event", func() {
		llm.SetErrorOnCall(1, "model not found")
		t := transport.NewLLMTransport(llm, model)

		snaps, errs := collect(t, request)

		Expect(snaps).To(BeEmpty())
		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(stream.ErrServer))
		Expect(errs[0].Error()).To(ContainSubstring("model not found"))
	})

	It("should stop generating when the session is cancelled", func() {
		llm.HangAfterStreaming()
		t := transport.NewLLMTransport(llm, model)

		var (
			mu    sync.Mutex
			snaps []stream.Snapshot
		)
		s := stream.Start(context.Background(), t, request, func(s stream.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			snaps = append(snaps, s)
		}, func(error) {})

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(snaps)
		}, time.Second).ShouldNot(BeZero())
		s.Cancel()
		Eventually(s.Done(), time.Second).Should(BeClosed())

		mu.Lock()
		defer mu.Unlock()
		final := snaps[len(snaps)-1]
		Expect(final.IsFinal).To(BeTrue())
		Expect(final.WasCancelled).To(BeTrue())
	})
})

var _ = Describe("FromConfig", func() {
	It("should build the configured transport", func() {
		cfg := &config.Config{}
		cfg.API.BaseURL = "http://localhost:8080"
		cfg.API.StreamPath = "/api/ollama/chat/stream"
		cfg.API.Timeout = time.Second

		cfg.Stream.Transport = "http"
		t, err := transport.FromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeAssignableToTypeOf(&transport.HTTPTransport{}))

		cfg.Stream.Transport = "ollama"
		cfg.Ollama.URL = "http://localhost:11434"
		t, err = transport.FromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeAssignableToTypeOf(&transport.LLMTransport{}))

		cfg.Stream.Transport = "carrier-pigeon"
		_, err = transport.FromConfig(cfg)
		Expect(err).To(MatchError(ContainSubstring("unknown transport")))
	})
})
