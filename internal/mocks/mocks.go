// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/uiprobe/internal/browser"
	"github.com/xkilldash9x/uiprobe/internal/locator"
)

// -- Driver Mock --

// MockDriver mocks browser.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Name() string { return m.Called().String(0) }

func (m *MockDriver) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockDriver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	args := m.Called(ctx, opts)
	if b, ok := args.Get(0).(browser.Browser); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Stop(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Browser Mock --

// MockBrowser mocks browser.Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Version() string { return m.Called().String(0) }

func (m *MockBrowser) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.BrowserContext, error) {
	args := m.Called(ctx, opts)
	if c, ok := args.Get(0).(browser.BrowserContext); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowser) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Browser Context Mock --

// MockBrowserContext mocks browser.BrowserContext. Pages returned by a
// successful NewPage are tracked and reported by Pages.
type MockBrowserContext struct {
	mock.Mock
	pages []browser.Page
}

func (m *MockBrowserContext) NewPage(ctx context.Context) (browser.Page, error) {
	args := m.Called(ctx)
	p, ok := args.Get(0).(browser.Page)
	if !ok {
		return nil, args.Error(1)
	}
	if args.Error(1) == nil {
		m.pages = append(m.pages, p)
	}
	return p, args.Error(1)
}

func (m *MockBrowserContext) Pages() []browser.Page {
	return append([]browser.Page(nil), m.pages...)
}

func (m *MockBrowserContext) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Page Mock --

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Goto(ctx context.Context, url string) error { return m.Called(ctx, url).Error(0) }

func (m *MockPage) WaitForLoadState(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockPage) Frames(ctx context.Context) ([]browser.Frame, error) {
	args := m.Called(ctx)
	frames, _ := args.Get(0).([]browser.Frame)
	return frames, args.Error(1)
}

func (m *MockPage) Probe(ctx context.Context, loc locator.Locator) (browser.ElementState, error) {
	args := m.Called(ctx, loc)
	return args.Get(0).(browser.ElementState), args.Error(1)
}

func (m *MockPage) Fill(ctx context.Context, loc locator.Locator, value string) error {
	return m.Called(ctx, loc, value).Error(0)
}

func (m *MockPage) Click(ctx context.Context, loc locator.Locator) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// -- Frame Mock --

// MockFrame mocks browser.Frame.
type MockFrame struct {
	mock.Mock
}

func (m *MockFrame) Name() string { return m.Called().String(0) }

func (m *MockFrame) URL() string { return m.Called().String(0) }

func (m *MockFrame) WaitForLoadState(ctx context.Context) error { return m.Called(ctx).Error(0) }
