package controllers_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/models"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"
)

func TestControllers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controllers Suite")
}

type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListModels(ctx context.Context) ([]models.Info, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Info)
	return list, args.Error(1)
}

var _ = Describe("ModelsController", func() {
	var (
		mockLister *MockLister
		controller *controllers.ModelsController
		buffer     *bytes.Buffer
		ctx        context.Context
	)

	BeforeEach(func() {
		mockLister = &MockLister{}
		controller = controllers.NewModelsController(mockLister)
		buffer = &bytes.Buffer{}
		ctx = context.Background()
	})

	Describe("ListModels", func() {
		Context("when models are available", func() {
			BeforeEach(func() {
				mockLister.On("ListModels", ctx).Return([]models.Info{
					models.Normalize(models.Info{Name: "gemma3:4b", Size: "4B", Modified: "2025-06-01T10:00:00Z"}),
					models.Normalize(models.Info{Name: "deepseek-r1:7b", Size: "7.6B"}),
				}, nil)
			})

			It("should format and display models correctly", func() {
				err := controller.ListModels(ctx, buffer, "deepseek-r1:7b")

				Expect(err).ToNot(HaveOccurred())
				output := buffer.String()
				Expect(output).To(ContainSubstring("NAME"))
				Expect(output).To(ContainSubstring("DISPLAY"))
				Expect(output).To(ContainSubstring("REASONING"))
				Expect(output).To(MatchRegexp(`gemma3:4b\s+gemma3\s+4B\s+2025-06-01T10:00:00Z\s+no`))
				Expect(output).To(MatchRegexp(`deepseek-r1:7b \*\s+deepseek-r1\s+7.6B\s+-\s+yes`))
				mockLister.AssertExpectations(GinkgoT())
			})
		})

		Context("when no models are available", func() {
			BeforeEach(func() {
				mockLister.On("ListModels", ctx).Return([]models.Info{}, nil)
			})

			It("should display no models message", func() {
				err := controller.ListModels(ctx, buffer, "")

				Expect(err).ToNot(HaveOccurred())
				Expect(buffer.String()).To(Equal("No models found\n"))
				mockLister.AssertExpectations(GinkgoT())
			})
		})

		Context("when the lister returns an error", func() {
			BeforeEach(func() {
				mockLister.On("ListModels", ctx).Return(nil, errors.New("connection failed"))
			})

			It("should return wrapped error", func() {
				err := controller.ListModels(ctx, buffer, "")

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to list models"))
				Expect(err.Error()).To(ContainSubstring("connection failed"))
				mockLister.AssertExpectations(GinkgoT())
			})
		})
	})

	Describe("with the cached lister", func() {
		It("falls back to the built-in list when the source fails", func() {
			mockLister.On("ListModels", mock.Anything).Return(nil, errors.New("down")).Once()
			controller = controllers.NewModelsController(models.NewCachedLister(mockLister))

			list, err := controller.List(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(list).To(HaveLen(len(models.Fallback)))
			Expect(list[0].Name).To(Equal("gemma3:4b"))
			mockLister.AssertExpectations(GinkgoT())
		})
	})
})
