package mocks

import (
	"context"
	"testing"

	"simulation-server/internal/generation"
	"simulation-server/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockTextGenerator is a mock type for the TextGenerator type
type MockTextGenerator struct {
	mock.Mock
}

func NewMockTextGenerator(t *testing.T) *MockTextGenerator {
	m := &MockTextGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockTextGenerator) Name() string {
	return "mock"
}

func (_m *MockTextGenerator) GenerateText(ctx context.Context, systemPrompt string, userInput string, params generation.GenerationParams) (string, generation.UsageInfo, error) {
	ret := _m.Called(ctx, systemPrompt, userInput, params)
	var usage generation.UsageInfo
	if u, ok := ret.Get(1).(generation.UsageInfo); ok {
		usage = u
	}
	return ret.String(0), usage, ret.Error(2)
}

// MockNarrativeGenerator is a mock type for the NarrativeGenerator type
type MockNarrativeGenerator struct {
	mock.Mock
}

func NewMockNarrativeGenerator(t *testing.T) *MockNarrativeGenerator {
	m := &MockNarrativeGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockNarrativeGenerator) GenerateNarrative(ctx context.Context, sc generation.StoryContext) (*generation.Narrative, error) {
	ret := _m.Called(ctx, sc)
	var r0 *generation.Narrative
	if rf, ok := ret.Get(0).(func(context.Context, generation.StoryContext) *generation.Narrative); ok {
		r0 = rf(ctx, sc)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*generation.Narrative)
	}
	return r0, ret.Error(1)
}

func (_m *MockNarrativeGenerator) GenerateOptions(ctx context.Context, sc generation.StoryContext, narrative string) ([]string, error) {
	ret := _m.Called(ctx, sc, narrative)
	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// MockImageGenerator is a mock type for the ImageGenerator type
type MockImageGenerator struct {
	mock.Mock
}

func NewMockImageGenerator(t *testing.T) *MockImageGenerator {
	m := &MockImageGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockImageGenerator) GenerateImage(ctx context.Context, req generation.ImageRequest) (*generation.ImageResult, error) {
	ret := _m.Called(ctx, req)
	var r0 *generation.ImageResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*generation.ImageResult)
	}
	return r0, ret.Error(1)
}

// MockImageRenderer is a mock type for the ImageRenderer type
type MockImageRenderer struct {
	mock.Mock
}

func NewMockImageRenderer(t *testing.T) *MockImageRenderer {
	m := &MockImageRenderer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockImageRenderer) Name() string {
	return "mock-images"
}

func (_m *MockImageRenderer) RenderImage(ctx context.Context, prompt string) (*generation.RenderedImage, error) {
	ret := _m.Called(ctx, prompt)
	var r0 *generation.RenderedImage
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*generation.RenderedImage)
	}
	return r0, ret.Error(1)
}

// MockVideoRenderer is a mock type for the VideoRenderer type
type MockVideoRenderer struct {
	mock.Mock
}

func NewMockVideoRenderer(t *testing.T) *MockVideoRenderer {
	m := &MockVideoRenderer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockVideoRenderer) Name() string {
	return "mock-videos"
}

func (_m *MockVideoRenderer) StartVideo(ctx context.Context, prompt string) (generation.JobHandle, error) {
	ret := _m.Called(ctx, prompt)
	var r0 generation.JobHandle
	if h, ok := ret.Get(0).(generation.JobHandle); ok {
		r0 = h
	}
	return r0, ret.Error(1)
}

func (_m *MockVideoRenderer) PollVideo(ctx context.Context, handle generation.JobHandle) (generation.JobHandle, error) {
	ret := _m.Called(ctx, handle)
	var r0 generation.JobHandle
	if h, ok := ret.Get(0).(generation.JobHandle); ok {
		r0 = h
	}
	return r0, ret.Error(1)
}

func (_m *MockVideoRenderer) FetchVideo(ctx context.Context, handle generation.JobHandle) ([]byte, error) {
	ret := _m.Called(ctx, handle)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// MockVideoGenerator is a mock type for the VideoGenerator type
type MockVideoGenerator struct {
	mock.Mock
}

func NewMockVideoGenerator(t *testing.T) *MockVideoGenerator {
	m := &MockVideoGenerator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockVideoGenerator) GenerateVideoJob(ctx context.Context, prompt string) (generation.JobHandle, error) {
	ret := _m.Called(ctx, prompt)
	var r0 generation.JobHandle
	if h, ok := ret.Get(0).(generation.JobHandle); ok {
		r0 = h
	}
	return r0, ret.Error(1)
}

func (_m *MockVideoGenerator) PollVideoJob(ctx context.Context, handle generation.JobHandle) (*generation.PollResult, error) {
	ret := _m.Called(ctx, handle)
	var r0 *generation.PollResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*generation.PollResult)
	}
	return r0, ret.Error(1)
}

func (_m *MockVideoGenerator) FetchAsset(ctx context.Context, handle generation.JobHandle) ([]byte, error) {
	ret := _m.Called(ctx, handle)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// MockCommandExtractor is a mock type for the CommandExtractor type
type MockCommandExtractor struct {
	mock.Mock
}

func NewMockCommandExtractor(t *testing.T) *MockCommandExtractor {
	m := &MockCommandExtractor{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockCommandExtractor) ExtractCommand(ctx context.Context, text string, knownHolograms []string) (*models.HologramCommand, error) {
	ret := _m.Called(ctx, text, knownHolograms)
	var r0 *models.HologramCommand
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.HologramCommand)
	}
	return r0, ret.Error(1)
}
