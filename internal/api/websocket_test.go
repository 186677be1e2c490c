package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/resolverd/internal/store"
)

func TestWSHubDeliversOnlyToSubscribedSwap(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx := context.Background()

	preimage := [32]byte{4}
	swap, err := srv.store.CreateSwap(ctx, store.Draft{
		UserAddress:        "0xcccc000000000000000000000000000000000c",
		BeneficiaryAddress: "0xcccc000000000000000000000000000000000c",
		SourceChain:        "ethereum-sepolia",
		SourceToken:        "ETH",
		SourceAmount:       "1.0",
		TargetChain:        "base-sepolia",
		TargetToken:        "ETH",
		ExpectedAmount:     "1.0",
		SlippageTolerance:  0.01,
		Preimage:           preimage,
		HashLock:           sha256.Sum256(preimage[:]),
		ExpirationTime:     time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/swaps/" + swap.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{})
	require.NoError(t, err)
	defer conn.Close()

	// give the hub a moment to register the client.
	deadline := time.Now().Add(time.Second)
	for srv.wsHub.ClientCount(swap.ID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv.wsHub.Broadcast("some-other-swap", store.EventUserHTLCFunded, nil)
	srv.wsHub.Broadcast(swap.ID, store.EventUserHTLCFunded, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event WSEvent
	require.NoError(t, json.Unmarshal(message, &event))
	require.Equal(t, store.EventUserHTLCFunded, event.Type)
}
