package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*GenerateResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) IsAvailable(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func TestRegistry_RegisterProvider(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterProvider(&mockProvider{name: "gemini"}))
	require.NoError(t, registry.RegisterProvider(&mockProvider{name: "backup"}))

	assert.ErrorIs(t, registry.RegisterProvider(&mockProvider{name: "gemini"}), ErrProviderAlreadyRegistered)
	assert.Error(t, registry.RegisterProvider(nil))
	assert.Error(t, registry.RegisterProvider(&mockProvider{}))

	assert.Equal(t, []string{"backup", "gemini"}, registry.ListProviders())
}

func TestRegistry_PrimaryIsFirstRegistered(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Primary()
	assert.ErrorIs(t, err, ErrProviderNotFound)

	require.NoError(t, registry.RegisterProvider(&mockProvider{name: "gemini"}))
	require.NoError(t, registry.RegisterProvider(&mockProvider{name: "backup"}))

	primary, err := registry.Primary()
	require.NoError(t, err)
	assert.Equal(t, "gemini", primary.Name())
}

func TestRegistry_GetProvider(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterProvider(&mockProvider{name: "gemini"}))

	p, err := registry.GetProvider("gemini")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	_, err = registry.GetProvider("missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable provider error", NewProviderError("gemini", "HTTP_ERROR", "failed", 0, true, nil), true},
		{"permanent provider error", NewProviderError("gemini", "INVALID_ARGUMENT", "bad", 400, false, nil), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
