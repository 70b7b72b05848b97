package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	for scenario, tc := range map[string]struct {
		status  int
		wantErr error
	}{
		"ok":           {http.StatusOK, nil},
		"unauthorized": {http.StatusForbidden, ErrUnauthorized},
	} {
		t.Run(scenario, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/bots", r.URL.Path)
				require.Equal(t, "test-token", r.Header.Get("X-Bot-Token"))
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-token")
			err := client.Probe(context.Background())
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSendMessage(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]int64{"message_id": 555})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	id, err := client.SendMessage(context.Background(), 42, "Здравствуйте! 🌿")
	require.NoError(t, err)
	require.Equal(t, int64(555), id)
	require.Equal(t, float64(42), got["chat_id"])
	require.Equal(t, "text", got["type"])
	require.Equal(t, "public", got["scope"])
	require.Equal(t, "Здравствуйте! 🌿", got["content"])
}

func TestSendMessageSkipsEmpty(t *testing.T) {
	client := NewClient("http://gateway.invalid", "test-token")
	id, err := client.SendMessage(context.Background(), 42, "   ")
	require.NoError(t, err)
	require.Zero(t, id)
}

func TestDialogAssigned(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/dialogs", r.URL.Path)
		require.Equal(t, "77", r.URL.Query().Get("id"))
		json.NewEncoder(w).Encode([]Dialog{{ID: 77, IsAssigned: true}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.True(t, client.DialogAssigned(context.Background(), 77))

	// Second lookup is served from the cache.
	require.True(t, client.DialogAssigned(context.Background(), 77))
	require.Equal(t, 1, calls)
}

func TestDialogAssignedFailuresMeanUnassigned(t *testing.T) {
	for scenario, handler := range map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"garbage payload": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			client := NewClient(server.URL, "test-token")
			require.False(t, client.DialogAssigned(context.Background(), 13))
		})
	}
}

func TestOnlineManagers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users", r.URL.Path)
		require.Equal(t, "71", r.URL.Query().Get("group"))
		require.Equal(t, "1", r.URL.Query().Get("online"))
		// Wrapped form some deployments return.
		json.NewEncoder(w).Encode(map[string][]Manager{"users": {
			{ID: 5, FirstName: "Анна", ActiveDialogs: 2},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	managers, err := client.OnlineManagers(context.Background(), 71)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.Equal(t, "Анна", managers[0].Name())
}

func TestAssignDialog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/dialogs/77/assign", r.URL.Path)
		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, 5, payload["user_id"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.AssignDialog(context.Background(), 77, 5))
}

func TestGetDialogFallsBackToPageScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/dialogs/77":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Query().Get("id") != "":
			w.WriteHeader(http.StatusNotFound)
		default:
			json.NewEncoder(w).Encode(map[string][]Dialog{"dialogs": {
				{ID: 12, ChatID: 3},
				{ID: 77, ChatID: 9},
			}})
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	d, err := client.GetDialog(context.Background(), 77)
	require.NoError(t, err)
	require.Equal(t, int64(77), d.ID)
}

func TestWebsocketURL(t *testing.T) {
	client := NewClient("https://mg-s1.retailcrm.pro/api/bot/v1", "token")
	require.Equal(t,
		"wss://mg-s1.retailcrm.pro/api/bot/v1/ws?events=message_new",
		client.WebsocketURL())
}
