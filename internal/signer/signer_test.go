package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestNewDerivesAddressFromKey(t *testing.T) {
	s, err := New("base-sepolia", 84532, testKeyHex, nil)
	require.NoError(t, err)
	assert.Equal(t, "base-sepolia", s.ChainName())
	assert.NotEqual(t, "0x0000000000000000000000000000000000000000", s.Address().Hex())
}

func TestNewAcceptsKeyWithOrWithout0xPrefix(t *testing.T) {
	withPrefix, err := New("base-sepolia", 84532, "0x"+testKeyHex, nil)
	require.NoError(t, err)
	withoutPrefix, err := New("base-sepolia", 84532, testKeyHex, nil)
	require.NoError(t, err)
	assert.Equal(t, withPrefix.Address(), withoutPrefix.Address())
}

func TestNewRejectsMalformedKey(t *testing.T) {
	_, err := New("base-sepolia", 84532, "not-hex", nil)
	assert.Error(t, err)
}
