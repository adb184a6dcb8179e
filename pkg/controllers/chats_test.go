package controllers_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/killallgit/vivu/pkg/api"
	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/render"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

var _ = Describe("ChatsController", func() {
	var (
		store      *MockStore
		controller *controllers.ChatsController
		buffer     *bytes.Buffer
		ctx        context.Context
	)

	BeforeEach(func() {
		store = &MockStore{}
		controller = controllers.NewChatsController(store, render.NewFormatter(80, render.Plain()))
		buffer = &bytes.Buffer{}
		ctx = context.Background()
	})

	Describe("ListChats", func() {
		It("writes a table of chats with the page position", func() {
			updated := time.Date(2025, 6, 1, 10, 30, 0, 0, time.Local)
			store.On("ListChats", ctx, 1, 2).Return(&api.ChatPage{
				Chats: []api.Chat{
					{ID: 7, Title: "Sky colour", Model: "gemma3:4b", UpdatedAt: updated},
					{ID: 8, Title: "Untitled"},
				},
				Page:          1,
				Size:          2,
				TotalElements: 5,
				TotalPages:    3,
			}, nil)

			Expect(controller.ListChats(ctx, buffer, 1, 2)).To(Succeed())

			output := buffer.String()
			Expect(output).To(MatchRegexp(`ID\s+TITLE\s+MODEL\s+UPDATED`))
			Expect(output).To(MatchRegexp(`7\s+Sky colour\s+gemma3:4b\s+2025-06-01 10:30`))
			Expect(output).To(MatchRegexp(`8\s+Untitled\s+-\s+-`))
			Expect(output).To(HaveSuffix("page 2 of 3 (5 chats)\n"))
			store.AssertExpectations(GinkgoT())
		})

		It("says when there are no chats", func() {
			store.On("ListChats", ctx, 0, 10).Return(&api.ChatPage{}, nil)

			Expect(controller.ListChats(ctx, buffer, 0, 10)).To(Succeed())
			Expect(buffer.String()).To(Equal("No chats found\n"))
		})

		It("returns store errors", func() {
			store.On("ListChats", ctx, 0, 10).Return(nil, errors.New("unauthorized"))

			Expect(controller.ListChats(ctx, buffer, 0, 10)).To(MatchError("unauthorized"))
		})
	})

	Describe("ShowChat", func() {
		It("prints each turn with reasoning when asked", func() {
			store.On("ChatMessages", ctx, int64(4)).Return([]chat.Message{
				{Role: chat.RoleUser, Content: "6*7?"},
				{Role: chat.RoleAssistant, Content: "42", Thinking: "multiply"},
			}, nil)

			Expect(controller.ShowChat(ctx, buffer, 4, true)).To(Succeed())
			Expect(buffer.String()).To(Equal("> 6*7?\n\nThought\n  multiply\n\n42\n"))

			buffer.Reset()
			Expect(controller.ShowChat(ctx, buffer, 4, false)).To(Succeed())
			Expect(buffer.String()).To(Equal("> 6*7?\n\n42\n"))
		})

		It("passes not found through", func() {
			store.On("ChatMessages", ctx, int64(99)).Return(nil, api.ErrNotFound)

			Expect(controller.ShowChat(ctx, buffer, 99, true)).To(MatchError(api.ErrNotFound))
		})
	})

	Describe("DeleteChat", func() {
		It("deletes through the store", func() {
			store.On("DeleteChat", mock.Anything, int64(3)).Return(nil).Once()

			Expect(controller.DeleteChat(ctx, 3)).To(Succeed())
			store.AssertExpectations(GinkgoT())
		})
	})
})
