package stream_test

import (
	"context"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	var (
		transport *testutil.FakeTransport
		manager   *stream.Manager
		request   chat.ChatRequest
	)

	BeforeEach(func() {
		transport = testutil.NewFakeTransport()
		manager = stream.NewManager(transport, stream.WithCancelPlaceholder("stopped"))
		request = chat.NewChatRequest(model, []chat.Message{chat.NewUserMessage("hello")})
	})

	AfterEach(func() {
		manager.CancelAll()
		Eventually(manager.Count).Should(BeZero())
	})

	It("should replace the live session of a conversation", func() {
		first := &recorder{}
		second := &recorder{}

		s1 := manager.Start(context.Background(), "chat-1", request, first.OnSnapshot, first.OnError)
		Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())

		s2 := manager.Start(context.Background(), "chat-1", request, second.OnSnapshot, second.OnError)
		Expect(transport.WaitForOpen(2, time.Second)).To(Succeed())

		Eventually(s1.Done()).Should(BeClosed())
		Expect(first.Finals()).To(HaveLen(1))
		Expect(first.Last().WasCancelled).To(BeTrue())
		Expect(first.Last().AnswerText).To(Equal("stopped"))

		Expect(transport.SendLines(testutil.ChunkLine(model, "fresh", true))).To(Succeed())
		Eventually(s2.Done()).Should(BeClosed())
		Expect(second.Last().AnswerText).To(Equal("fresh"))
		Expect(second.Last().WasCancelled).To(BeFalse())
	})

	It("should keep conversations independent", func() {
		a := &recorder{}
		b := &recorder{}

		sa := manager.Start(context.Background(), "chat-a", request, a.OnSnapshot, a.OnError)
		Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
		sb := manager.Start(context.Background(), "chat-b", request, b.OnSnapshot, b.OnError)
		Expect(transport.WaitForOpen(2, time.Second)).To(Succeed())

		Expect(manager.Count()).To(Equal(2))

		Expect(manager.Cancel("chat-a")).To(BeTrue())
		Eventually(sa.Done()).Should(BeClosed())
		Consistently(sb.Done(), 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(b.Snapshots()).To(BeEmpty())

		active, ok := manager.GetStream("chat-b")
		Expect(ok).To(BeTrue())
		Expect(active.Session).To(BeIdenticalTo(sb))
		Eventually(manager.Count).Should(Equal(1))
	})

	It("should report unknown conversations", func() {
		Expect(manager.Cancel("missing")).To(BeFalse())

		_, ok := manager.GetStream("missing")
		Expect(ok).To(BeFalse())
	})

	It("should forget sessions once they finish", func() {
		rec := &recorder{}
		session := manager.Start(context.Background(), "chat-1", request, rec.OnSnapshot, rec.OnError)
		Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())

		Expect(transport.SendLines(testutil.ChunkLine(model, "bye", true))).To(Succeed())
		Eventually(session.Done()).Should(BeClosed())

		Eventually(manager.Count).Should(BeZero())
	})
})
