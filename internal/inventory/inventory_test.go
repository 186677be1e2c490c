package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	l, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 1000, 100))

	require.NoError(t, l.Reserve(ctx, "base-sepolia", "ETH", 400))
	bal, err := l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(400), bal.Reserved)
	assert.Equal(t, int64(600), bal.AvailableBalance)

	require.NoError(t, l.Release(ctx, "base-sepolia", "ETH", 400))
	bal, err = l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Reserved)
	assert.Equal(t, int64(1000), bal.AvailableBalance)
}

func TestReserveFailsWhenInsufficientLiquidity(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 100, 0))

	err := l.Reserve(ctx, "base-sepolia", "ETH", 500)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	bal, err := l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Reserved, "failed reserve must not partially apply")
}

func TestReserveUnknownPosition(t *testing.T) {
	l := openTestLedger(t)
	err := l.Reserve(context.Background(), "nowhere", "ETH", 1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 1000, 0))
	require.NoError(t, l.Reserve(ctx, "base-sepolia", "ETH", 100))

	require.NoError(t, l.Release(ctx, "base-sepolia", "ETH", 9999))

	bal, err := l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Reserved)
	assert.GreaterOrEqual(t, bal.Total, bal.Reserved)
}

func TestSeedIsIdempotent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 1000, 0))
	require.NoError(t, l.Reserve(ctx, "base-sepolia", "ETH", 500))

	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 2000, 0))

	bal, err := l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Reserved, "re-seeding must not reset an existing position")
}

func TestRefreshTotalUpdatesSnapshot(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Seed(ctx, "base-sepolia", "ETH", 1000, 0))

	require.NoError(t, l.RefreshTotal(ctx, "base-sepolia", "ETH", 1500))

	bal, err := l.Observe(ctx, "base-sepolia", "ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), bal.Total)
}
