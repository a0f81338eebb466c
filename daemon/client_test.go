package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/duskline/duskwallet/walletcrypto"
)

// fakeDaemonServer upgrades every connection to a websocket and answers
// get_info with a canned InfoResult, echoing back whatever request ID it was
// sent so call() can correlate the reply.
func fakeDaemonServer(t *testing.T, info InfoResult) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			switch req.Method {
			case "get_info":
				result, _ := json.Marshal(info)
				conn.WriteJSON(rpcResponse{ID: req.ID, Result: result})
			case "push_new_block":
				evt := NewBlockEvent{Hash: info.TopBlockHash}
				params, _ := json.Marshal(evt)
				conn.WriteJSON(rpcResponse{Method: "new_block", Params: params})
				conn.WriteJSON(rpcResponse{ID: req.ID})
			default:
				conn.WriteJSON(rpcResponse{ID: req.ID, Error: &rpcError{Code: 1, Message: "unknown method"}})
			}
		}
	}))
	return srv
}

func dialClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	host := strings.TrimPrefix(srv.URL, "http://")
	c := NewClient(ConnConfig{Host: host, DisableTLS: true})
	require.NoError(t, c.Connect())
	return c
}

func TestClientGetInfoRoundTrip(t *testing.T) {
	want := InfoResult{Topoheight: 42, Network: walletcrypto.Mainnet}
	want.TopBlockHash[0] = 0xAB

	srv := fakeDaemonServer(t, want)
	defer srv.Close()

	c := dialClient(t, srv)
	defer c.Shutdown()

	got, err := c.GetInfo()
	require.NoError(t, err)
	require.Equal(t, want.Topoheight, got.Topoheight)
	require.Equal(t, want.TopBlockHash, got.TopBlockHash)
	require.Equal(t, want.Network, got.Network)
}

func TestClientCallErrorPropagates(t *testing.T) {
	srv := fakeDaemonServer(t, InfoResult{})
	defer srv.Close()

	c := dialClient(t, srv)
	defer c.Shutdown()

	_, err := c.GetNonce("dk1unknown")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown method")
}

func TestClientDispatchesNewBlockNotification(t *testing.T) {
	want := InfoResult{Topoheight: 7}
	want.TopBlockHash[1] = 0xCD

	srv := fakeDaemonServer(t, want)
	defer srv.Close()

	c := dialClient(t, srv)
	defer c.Shutdown()

	err := c.call("push_new_block", nil, nil)
	require.NoError(t, err)

	select {
	case evt := <-c.OnNewBlock():
		require.Equal(t, want.TopBlockHash, evt.Hash)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for new_block notification")
	}
}
