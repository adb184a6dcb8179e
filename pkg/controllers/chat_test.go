package controllers_test

import (
	"context"
	"errors"
	"time"

	"github.com/killallgit/vivu/pkg/api"
	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

const model = "deepseek-r1:7b"

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListChats(ctx context.Context, page, size int) (*api.ChatPage, error) {
	args := m.Called(ctx, page, size)
	result, _ := args.Get(0).(*api.ChatPage)
	return result, args.Error(1)
}

func (m *MockStore) ChatMessages(ctx context.Context, chatID int64) ([]chat.Message, error) {
	args := m.Called(ctx, chatID)
	result, _ := args.Get(0).([]chat.Message)
	return result, args.Error(1)
}

func (m *MockStore) CreateChat(ctx context.Context, model, title, description string) (*api.Chat, error) {
	args := m.Called(ctx, model, title, description)
	result, _ := args.Get(0).(*api.Chat)
	return result, args.Error(1)
}

func (m *MockStore) SendMessage(ctx context.Context, chatID int64, msg chat.Message) (chat.Message, error) {
	args := m.Called(ctx, chatID, msg)
	return msg, args.Error(1)
}

func (m *MockStore) DeleteChat(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func withRole(role string) any {
	return mock.MatchedBy(func(m chat.Message) bool { return m.Role == role })
}

type sendResult struct {
	snap stream.Snapshot
	err  error
}

var _ = Describe("ChatController", func() {
	var (
		transport  *testutil.FakeTransport
		manager    *stream.Manager
		ctx        context.Context
		snapshots  chan stream.Snapshot
		onSnapshot stream.SnapshotFunc
	)

	BeforeEach(func() {
		transport = testutil.NewFakeTransport()
		manager = stream.NewManager(transport, stream.WithMinBatchSize(1))
		ctx = context.Background()
		snapshots = make(chan stream.Snapshot, 100)
		onSnapshot = func(s stream.Snapshot) { snapshots <- s }
	})

	send := func(ctx context.Context, cc *controllers.ChatController, content string) <-chan sendResult {
		out := make(chan sendResult, 1)
		go func() {
			defer GinkgoRecover()
			snap, err := cc.Send(ctx, content, onSnapshot)
			out <- sendResult{snap, err}
		}()
		return out
	}

	Describe("Send", func() {
		It("refuses empty messages", func() {
			cc := controllers.NewChatController(manager, model)

			_, err := cc.Send(ctx, "   ", nil)

			Expect(err).To(MatchError(controllers.ErrEmptyMessage))
			Expect(transport.OpenCount()).To(Equal(0))
			Expect(cc.History()).To(BeEmpty())
		})

		It("streams a reply and keeps both sides in the history", func() {
			cc := controllers.NewChatController(manager, model)

			result := send(ctx, cc, "  What is 6*7?  ")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(
				testutil.ChunkLine(model, "<think>six sevens</think>", false),
				testutil.ChunkLine(model, "It is 42.", false),
				testutil.FinalLine(model, 2*time.Second, 7),
			)).To(Succeed())

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.err).ToNot(HaveOccurred())
			Expect(res.snap.IsFinal).To(BeTrue())
			Expect(res.snap.AnswerText).To(Equal("It is 42."))
			Expect(res.snap.ReasoningText).To(Equal("six sevens"))
			Expect(res.snap.ReasoningElapsed).ToNot(BeNil(), "the elapsed time of a closed segment is carried to the end")
			Expect(res.snap.EvalCount).To(Equal(7))
			Expect(snapshots).ToNot(BeEmpty())

			req := transport.Requests()[0]
			Expect(req.Model).To(Equal(model))
			Expect(req.Messages).To(Equal([]chat.WireMessage{{Role: chat.RoleUser, Content: "What is 6*7?"}}))

			history := cc.History()
			Expect(history).To(HaveLen(2))
			Expect(history[1].Role).To(Equal(chat.RoleAssistant))
			Expect(history[1].Content).To(Equal("It is 42."))
			Expect(history[1].Thinking).To(Equal("six sevens"))
		})

		It("sends the earlier turns with the next message", func() {
			cc := controllers.NewChatController(manager, model)

			first := send(ctx, cc, "hi")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ChunkLine(model, "hello", true))).To(Succeed())
			Eventually(first).Should(Receive())

			second := send(ctx, cc, "again")
			Expect(transport.WaitForOpen(2, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ChunkLine(model, "hello again", true))).To(Succeed())
			Eventually(second).Should(Receive())

			Expect(transport.Requests()[1].Messages).To(Equal([]chat.WireMessage{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleAssistant, Content: "hello"},
				{Role: chat.RoleUser, Content: "again"},
			}))
		})

		It("records stream failures as local error messages", func() {
			cc := controllers.NewChatController(manager, model)

			result := send(ctx, cc, "hi")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ErrorLine("model not found"))).To(Succeed())

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.err).To(MatchError(stream.ErrServer))

			history := cc.History()
			Expect(history).To(HaveLen(2))
			Expect(history[1].IsError()).To(BeTrue())
			Expect(history[1].Content).To(ContainSubstring("model not found"))

			next := send(ctx, cc, "retry")
			Expect(transport.WaitForOpen(2, time.Second)).To(Succeed())
			Expect(transport.Requests()[1].Messages).To(HaveLen(2), "error messages stay local")
			Expect(transport.SendLines(testutil.ChunkLine(model, "ok", true))).To(Succeed())
			Eventually(next).Should(Receive())
		})

		It("keeps the partial answer when the reply is cancelled", func() {
			cc := controllers.NewChatController(manager, model)
			sendCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			result := send(sendCtx, cc, "tell me a story")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ChunkLine(model, "Once upon", false))).To(Succeed())
			Eventually(snapshots).Should(Receive())
			cancel()

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.err).ToNot(HaveOccurred())
			Expect(res.snap.WasCancelled).To(BeTrue())
			Expect(res.snap.AnswerText).To(Equal("Once upon"))
			Expect(cc.History()[1].Content).To(Equal("Once upon"))
		})

		It("can be cancelled through the controller", func() {
			cc := controllers.NewChatController(manager, model,
				controllers.WithStreamOptions(stream.WithCancelPlaceholder("stopped")))

			result := send(ctx, cc, "hi")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Eventually(cc.Cancel).Should(BeTrue())

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.snap.WasCancelled).To(BeTrue())
			Expect(res.snap.AnswerText).To(Equal("stopped"))
			Eventually(cc.Cancel).Should(BeFalse(), "nothing left to cancel")

			Expect(cc.History()).To(HaveLen(1), "the placeholder is not an assistant turn")

			next := send(ctx, cc, "hi again")
			Expect(transport.WaitForOpen(2, time.Second)).To(Succeed())
			Expect(transport.Requests()[1].Messages).To(Equal([]chat.WireMessage{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleUser, Content: "hi again"},
			}))
			Expect(transport.SendLines(testutil.ChunkLine(model, "hello", true))).To(Succeed())
			Eventually(next).Should(Receive())
		})
	})

	Describe("with a store", func() {
		var store *MockStore

		BeforeEach(func() {
			store = &MockStore{}
		})

		It("creates the chat on the first message and saves both sides", func() {
			store.On("CreateChat", mock.Anything, model, "Why is the sky blue?", "").
				Return(&api.Chat{ID: 12, Title: "Why is the sky blue?"}, nil).Once()
			store.On("SendMessage", mock.Anything, int64(12), withRole(chat.RoleUser)).Return(nil, nil).Once()
			store.On("SendMessage", mock.Anything, int64(12), mock.MatchedBy(func(m chat.Message) bool {
				return m.IsAssistant() && m.Content == "Rayleigh scattering." && m.Thinking == "physics"
			})).Return(nil, nil).Once()

			cc := controllers.NewChatController(manager, model, controllers.WithStore(store))
			result := send(ctx, cc, "Why is the sky blue?")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(
				testutil.ChunkLine(model, "<think>physics</think>Rayleigh scattering.", false),
				testutil.FinalLine(model, time.Second, 4),
			)).To(Succeed())

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.err).ToNot(HaveOccurred())
			Expect(cc.ChatID()).To(Equal(int64(12)))
			store.AssertExpectations(GinkgoT())
		})

		It("continues an existing chat with its stored history", func() {
			store.On("ChatMessages", mock.Anything, int64(5)).Return([]chat.Message{
				{Role: chat.RoleUser, Content: "earlier"},
				{Role: chat.RoleAssistant, Content: "reply", Thinking: "hidden"},
			}, nil)
			store.On("SendMessage", mock.Anything, int64(5), mock.Anything).Return(nil, nil)

			cc := controllers.NewChatController(manager, model, controllers.WithStore(store), controllers.WithChatID(5))
			Expect(cc.LoadHistory(ctx)).To(Succeed())
			Expect(cc.History()).To(HaveLen(2))

			result := send(ctx, cc, "more")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ChunkLine(model, "sure", true))).To(Succeed())
			Eventually(result).Should(Receive())

			Expect(transport.Requests()[0].Messages).To(Equal([]chat.WireMessage{
				{Role: chat.RoleUser, Content: "earlier"},
				{Role: chat.RoleAssistant, Content: "reply"},
				{Role: chat.RoleUser, Content: "more"},
			}))
			store.AssertNotCalled(GinkgoT(), "CreateChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			store.AssertNumberOfCalls(GinkgoT(), "SendMessage", 2)
		})

		It("does not save a cancelled reply", func() {
			store.On("CreateChat", mock.Anything, model, "hi", "").Return(&api.Chat{ID: 3}, nil)
			store.On("SendMessage", mock.Anything, int64(3), withRole(chat.RoleUser)).Return(nil, nil)

			cc := controllers.NewChatController(manager, model, controllers.WithStore(store))
			sendCtx, cancel := context.WithCancel(ctx)
			result := send(sendCtx, cc, "hi")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			cancel()

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.snap.WasCancelled).To(BeTrue())
			store.AssertNumberOfCalls(GinkgoT(), "SendMessage", 1)
		})

		It("keeps chatting locally when the chat cannot be created", func() {
			store.On("CreateChat", mock.Anything, model, "hi", "").Return(nil, errors.New("unauthorized"))

			cc := controllers.NewChatController(manager, model, controllers.WithStore(store))
			result := send(ctx, cc, "hi")
			Expect(transport.WaitForOpen(1, time.Second)).To(Succeed())
			Expect(transport.SendLines(testutil.ChunkLine(model, "hello", true))).To(Succeed())

			var res sendResult
			Eventually(result).Should(Receive(&res))
			Expect(res.err).ToNot(HaveOccurred())
			Expect(cc.ChatID()).To(BeZero())
			store.AssertNotCalled(GinkgoT(), "SendMessage", mock.Anything, mock.Anything, mock.Anything)
		})

		It("surfaces history load failures", func() {
			store.On("ChatMessages", mock.Anything, int64(9)).Return(nil, api.ErrNotFound)

			cc := controllers.NewChatController(manager, model, controllers.WithStore(store), controllers.WithChatID(9))

			Expect(cc.LoadHistory(ctx)).To(MatchError(api.ErrNotFound))
		})
	})
})
