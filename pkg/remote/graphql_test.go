package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GraphQLClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.NewForTest()
	cfg.RemoteBaseURL = server.URL

	return NewGraphQLClient(cfg, &session.Session{
		UserID:    "user-1",
		Username:  "reader",
		AuthToken: "test-token",
	})
}

func expiredToken(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	return signed
}

func graphQLResponse(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()

	err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	require.NoError(t, err)
}

func TestGraphQLClientListChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("decodes items, deletions, and the cursor", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/graphql", r.URL.Path)
			assert.Equal(t, "test-token", r.Header.Get("Authorization"))

			req := graphQLRequest{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(20), req.Variables["limit"])
			assert.Equal(t, "page-1", req.Variables["cursor"])

			graphQLResponse(t, w, map[string]interface{}{
				"itemUpdates": map[string]interface{}{
					"edges": []map[string]interface{}{
						{
							"updateReason": "UPDATED",
							"itemID":       "item-1",
							"item": map[string]interface{}{
								"id":      "item-1",
								"url":     "https://example.com/a",
								"title":   "A",
								"savedAt": "2026-08-01T10:00:00Z",
							},
						},
						{
							"updateReason": "DELETED",
							"itemID":       "item-2",
						},
					},
					"pageInfo": map[string]interface{}{
						"hasNextPage": true,
						"endCursor":   "page-2",
					},
				},
			})
		})

		cursor := "page-1"
		page, err := client.ListChanges(ctx, time.Now().Add(-time.Hour), &cursor, 20)
		require.NoError(t, err)

		require.Len(t, page.Items, 1)
		assert.Equal(t, "item-1", page.Items[0].ID)
		assert.Equal(t, []string{"item-2"}, page.DeletedItemIDs)
		assert.True(t, page.HasMore)
		require.NotNil(t, page.Cursor)
		assert.Equal(t, "page-2", *page.Cursor)
	})

	t.Run("maps transport failures to network errors", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewForTest()
		cfg.RemoteBaseURL = "http://127.0.0.1:1"
		client := NewGraphQLClient(cfg, &session.Session{AuthToken: "test-token"})

		_, err := client.ListChanges(ctx, time.Now(), nil, 20)
		require.Error(t, err)
		assert.True(t, errcodes.IsRetryable(err))
	})

	t.Run("maps 401 to unauthorized", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := client.ListChanges(ctx, time.Now(), nil, 20)
		require.Error(t, err)
		assert.True(t, errcodes.IsUnauthorized(err))
		assert.False(t, errcodes.IsRetryable(err))
	})

	t.Run("maps 500 to a retryable network error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.ListChanges(ctx, time.Now(), nil, 20)
		require.Error(t, err)
		assert.True(t, errcodes.IsRetryable(err))
	})

	t.Run("maps malformed payloads to decode errors", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		})

		_, err := client.ListChanges(ctx, time.Now(), nil, 20)
		require.Error(t, err)
		assert.True(t, errcodes.IsDecode(err))
		assert.False(t, errcodes.IsRetryable(err))
	})

	t.Run("fails fast on an expired token without a request", func(t *testing.T) {
		t.Parallel()

		requested := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			requested = true
		})
		client.session.AuthToken = expiredToken(t)

		_, err := client.ListChanges(ctx, time.Now(), nil, 20)
		require.Error(t, err)
		assert.True(t, errcodes.IsUnauthorized(err))
		assert.False(t, requested)
	})
}

func TestGraphQLClientFetchContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns content and state", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(t, w, map[string]interface{}{
				"itemContent": map[string]interface{}{
					"state":   "SUCCEEDED",
					"content": "<html><body>full article body</body></html>",
				},
			})
		})

		result, err := client.FetchContent(ctx, "item-1")
		require.NoError(t, err)

		assert.Equal(t, "SUCCEEDED", result.State)
		require.NotNil(t, result.HTML)
		assert.Contains(t, *result.HTML, "full article body")
	})

	t.Run("defaults a missing state to succeeded", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(t, w, map[string]interface{}{
				"itemContent": map[string]interface{}{
					"content": "<html><body>legacy item</body></html>",
				},
			})
		})

		result, err := client.FetchContent(ctx, "item-1")
		require.NoError(t, err)
		assert.Equal(t, "SUCCEEDED", result.State)
	})

	t.Run("maps graphql not found errors", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			err := json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": []map[string]interface{}{
					{
						"message":    "item not found",
						"extensions": map[string]interface{}{"code": "NOT_FOUND"},
					},
				},
			})
			require.NoError(t, err)
		})

		_, err := client.FetchContent(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errcodes.IsNotFound(err))
	})
}

func TestGraphQLClientCreateItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sends the client request id and returns the server id", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			req := graphQLRequest{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			input := req.Variables["input"].(map[string]interface{})
			assert.Equal(t, "https://example.com/a", input["url"])
			assert.Equal(t, "local-1", input["clientRequestId"])

			graphQLResponse(t, w, map[string]interface{}{
				"saveURL": map[string]interface{}{
					"itemID": "server-1",
					"slug":   "a-slug",
				},
			})
		})

		result, err := client.CreateItem(ctx, CreateItemRequest{
			URL:             "https://example.com/a",
			ClientRequestID: "local-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "server-1", result.ServerID)
		assert.Equal(t, "a-slug", result.Slug)
	})

	t.Run("surfaces save error codes", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(t, w, map[string]interface{}{
				"saveURL": map[string]interface{}{
					"errorCodes": []string{"UNKNOWN"},
				},
			})
		})

		_, err := client.CreateItem(ctx, CreateItemRequest{URL: "https://example.com/a"})
		require.Error(t, err)
		assert.True(t, errcodes.IsDecode(err))
	})
}

func TestGraphQLClientUpdateReadingProgress(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := graphQLRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		input := req.Variables["input"].(map[string]interface{})
		assert.Equal(t, "item-1", input["itemID"])
		assert.Equal(t, 42.5, input["readingProgressPercent"])

		graphQLResponse(t, w, map[string]interface{}{
			"saveReadingProgress": map[string]interface{}{"itemID": "item-1"},
		})
	})

	err := client.UpdateReadingProgress(context.Background(), "item-1", 42.5, 7)
	require.NoError(t, err)
}

func TestGraphQLClientUpdateItemNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		graphQLResponse(t, w, map[string]interface{}{
			"updateItem": map[string]interface{}{
				"errorCodes": []string{"NOT_FOUND"},
			},
		})
	})

	title := "New Title"
	err := client.UpdateItem(context.Background(), "gone", ItemPatch{Title: &title})
	require.Error(t, err)
	assert.True(t, errcodes.IsNotFound(err))
}

func TestGraphQLClientCreateLabel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns the created label", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(t, w, map[string]interface{}{
				"createLabel": map[string]interface{}{
					"label": map[string]interface{}{
						"id":    "label-1",
						"name":  "reading",
						"color": "#ff0000",
					},
				},
			})
		})

		label, err := client.CreateLabel(ctx, "reading", "#ff0000")
		require.NoError(t, err)
		assert.Equal(t, "label-1", label.ID)
		assert.Equal(t, "reading", label.Name)
	})

	t.Run("maps duplicate names to conflict", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			graphQLResponse(t, w, map[string]interface{}{
				"createLabel": map[string]interface{}{
					"errorCodes": []string{"LABEL_ALREADY_EXISTS"},
				},
			})
		})

		_, err := client.CreateLabel(ctx, "reading", "#ff0000")
		require.Error(t, err)
		assert.True(t, errcodes.IsConflict(err))
	})
}

func TestGraphQLClientFetchPDF(t *testing.T) {
	t.Parallel()

	pdfBytes := []byte("%PDF-1.7 fake document body")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/documents/item-1.pdf" {
			_, _ = w.Write(pdfBytes)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	data, err := client.FetchPDF(context.Background(), client.baseURL+"/documents/item-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)

	_, err = client.FetchPDF(context.Background(), client.baseURL+"/documents/other.pdf")
	require.Error(t, err)
	assert.True(t, errcodes.IsNotFound(err))
}
