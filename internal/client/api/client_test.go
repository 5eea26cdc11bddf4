package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
)

func testServer(t *testing.T, handler http.HandlerFunc) (string, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")
	return host, New(host, "app-token", WithInsecure())
}

func TestAuthenticate(t *testing.T) {
	host, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/account/apps", r.URL.Path)
		handle, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "alice", handle)
		assert.Equal(t, "secret", password)
		_ = json.NewEncoder(w).Encode(map[string]string{"guid": "g1", "appToken": "tok"})
	})

	access, err := Authenticate(context.Background(), host, "alice", "secret", WithInsecure())
	require.NoError(t, err)
	assert.Equal(t, "g1", access.GUID)
	assert.Equal(t, "tok", access.AppToken)
	assert.Equal(t, host, access.Server)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	host, _ := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := Authenticate(context.Background(), host, "alice", "wrong", WithInsecure())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestGetCardDeltas_QueryParams(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contact/cards", r.URL.Path)
		assert.Equal(t, "app-token", r.URL.Query().Get(common.AgentParamName))
		assert.Equal(t, "42", r.URL.Query().Get("revision"))
		_ = json.NewEncoder(w).Encode([]models.CardDelta{{ID: "c1", Revision: 43}})
	})

	deltas, err := c.GetCardDeltas(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "c1", deltas[0].ID)
}

func TestGetContactChannelDeltas_QueryParams(t *testing.T) {
	host, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contact/channels", r.URL.Path)
		assert.Equal(t, "guid.tok", r.URL.Query().Get(common.ContactParamName))
		assert.Equal(t, "3", r.URL.Query().Get("viewRevision"))
		assert.Equal(t, "8", r.URL.Query().Get("channelRevision"))
		_ = json.NewEncoder(w).Encode([]models.ChannelDelta{})
	})

	dest := models.Destination{Node: host, Token: "guid.tok"}
	_, err := c.GetContactChannelDeltas(context.Background(), dest, 3, 8)
	require.NoError(t, err)
}

func TestGetContactChannelDeltas_OmitsZeroCursor(t *testing.T) {
	host, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		// a view reset refetches the whole range; no cursor parameter at all
		assert.False(t, r.URL.Query().Has("channelRevision"))
		_ = json.NewEncoder(w).Encode([]models.ChannelDelta{})
	})

	dest := models.Destination{Node: host, Token: "guid.tok"}
	_, err := c.GetContactChannelDeltas(context.Background(), dest, 3, 0)
	require.NoError(t, err)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"unauthorized", http.StatusUnauthorized, common.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, common.ErrUnauthorized},
		{"not found", http.StatusNotFound, common.ErrNotFound},
		{"server error", http.StatusInternalServerError, common.ErrTransport},
		{"bad gateway", http.StatusBadGateway, common.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			})
			_, err := c.GetCardDeltas(context.Background(), 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := c.GetCardDeltas(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrMalformedDelta)
}

func TestUnreachableNode(t *testing.T) {
	c := New("127.0.0.1:1", "tok", WithInsecure())
	_, err := c.GetCardDeltas(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestSetCardProfile_SendsBody(t *testing.T) {
	var got models.CardProfile
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/contact/cards/c1/profile", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.SetCardProfile(context.Background(), "c1", &models.CardProfile{GUID: "g1", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GUID)
	assert.Equal(t, "Alice", got.Name)
}
