package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

func TestMethodPolicies(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{
		"proxy.allowed_methods": []string{
			core.MethodImportLightWalletAddress, "getinfo", core.MethodGetRawMempool,
		},
	})

	policies := methodPolicies(cfg)
	require.Len(t, policies, 3)

	assert.Equal(t, "getinfo", policies[0].Method)
	assert.False(t, policies[0].FastPath)
	assert.False(t, policies[0].Throttled)

	assert.Equal(t, core.MethodGetRawMempool, policies[1].Method)
	assert.True(t, policies[1].FastPath)

	assert.Equal(t, core.MethodImportLightWalletAddress, policies[2].Method)
	assert.True(t, policies[2].Throttled)
	assert.Equal(t, 10, policies[2].MaxCalls)
	assert.Equal(t, 600, policies[2].WindowSeconds)
}

func TestMethodPoliciesWithoutChainInfo(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{
		"proxy.allowed_methods": []string{core.MethodGetBlockchainInfo},
		"chaininfo.enabled":     false,
	})

	policies := methodPolicies(cfg)
	require.Len(t, policies, 1)
	assert.False(t, policies[0].FastPath)
}
