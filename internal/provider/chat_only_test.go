package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveReturnsChatOnlyForAnthropicAndGemini(t *testing.T) {
	reg := NewRegistry()

	p, _, err := reg.Resolve("anthropic", "")
	require.NoError(t, err)
	_, ok := p.(*chatOnly)
	require.True(t, ok)

	p, _, err = reg.Resolve("gemini", "")
	require.NoError(t, err)
	_, ok = p.(*chatOnly)
	require.True(t, ok)
}

func TestChatOnlyRefusesToolCalling(t *testing.T) {
	p := &chatOnly{vendor: vendorAnthropic}
	_, err := p.ChatWithTools(context.Background(), Request{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "does not support tool calling")
}

func TestVendorNameCoversBothVendors(t *testing.T) {
	assert.Equal(t, "anthropic", vendorName(vendorAnthropic))
	assert.Equal(t, "gemini", vendorName(vendorGemini))
}
