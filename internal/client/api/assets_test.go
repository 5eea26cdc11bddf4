package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
)

func TestAddTopicAsset(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/content/channels/ch1/topics/t1/assets", r.URL.Path)
		assert.Equal(t, "app-token", r.URL.Query().Get(common.AgentParamName))
		assert.Equal(t, `["thumb;photo","copy;photo"]`, r.URL.Query().Get("transforms"))

		file, header, err := r.FormFile("asset")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "a.jpg", header.Filename)
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "jpeg bytes", string(body))

		_ = json.NewEncoder(w).Encode([]models.AssetMeta{
			{AssetID: "asset-thumb", Transform: "thumb;photo", Status: "ready"},
			{AssetID: "asset-full", Transform: "copy;photo", Status: "ready"},
		})
	})

	metas, err := c.AddTopicAsset(context.Background(), "ch1", "t1", "a.jpg",
		strings.NewReader("jpeg bytes"), []string{"thumb;photo", "copy;photo"})
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "asset-thumb", metas[0].AssetID)
	assert.Equal(t, "asset-full", metas[1].AssetID)
}

func TestAddContactTopicAsset_RoutesToContactNode(t *testing.T) {
	host, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contact/channels/ch1/topics/t1/assets", r.URL.Path)
		assert.Equal(t, "guid.tok", r.URL.Query().Get(common.ContactParamName))
		assert.False(t, r.URL.Query().Has("transforms"), "no transforms parameter when none requested")
		_ = json.NewEncoder(w).Encode([]models.AssetMeta{{AssetID: "asset-1"}})
	})

	dest := models.Destination{Node: host, Token: "guid.tok"}
	metas, err := c.AddContactTopicAsset(context.Background(), dest, "ch1", "t1", "a.jpg",
		strings.NewReader("x"), nil)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "asset-1", metas[0].AssetID)
}

func TestAddTopicAsset_UploadFailure(t *testing.T) {
	_, c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.AddTopicAsset(context.Background(), "ch1", "t1", "a.jpg",
		strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
