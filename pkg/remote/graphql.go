package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/session"
)

// GraphQLClient talks to the library backend's GraphQL API over HTTP.
type GraphQLClient struct {
	baseURL string
	session *session.Session
	http    *http.Client
}

var _ Client = (*GraphQLClient)(nil)

func NewGraphQLClient(cfg *config.Config, sess *session.Session) *GraphQLClient {
	return &GraphQLClient{
		baseURL: cfg.RemoteBaseURL,
		session: sess,
		http: &http.Client{
			Timeout: cfg.RemoteTimeout,
		},
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// do runs one GraphQL request and decodes the data field into out. All
// transport, auth, and payload failures are mapped onto the errcodes
// taxonomy so callers can branch on retryability without knowing HTTP.
func (c *GraphQLClient) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if c.session.TokenExpired(time.Now()) {
		return errcodes.Unauthorized()
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/graphql", bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.session.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return errcodes.Network(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errcodes.Unauthorized()
	case resp.StatusCode >= 500:
		return errcodes.Network(resp.Status)
	case resp.StatusCode >= 400:
		return errcodes.Decode(resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errcodes.Network(err.Error())
	}

	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errcodes.Decode(err.Error())
	}

	if len(envelope.Errors) > 0 {
		return mapGraphQLError(envelope.Errors[0])
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return errcodes.Decode(err.Error())
		}
	}

	return nil
}

func mapGraphQLError(gqlErr graphQLError) error {
	switch gqlErr.Extensions.Code {
	case "UNAUTHORIZED", "UNAUTHENTICATED":
		return errcodes.Unauthorized()
	case "NOT_FOUND":
		return errcodes.NotFound("Entity")
	case "CONFLICT", "LABEL_ALREADY_EXISTS":
		return errcodes.Conflict(gqlErr.Message)
	default:
		return errcodes.Decode(gqlErr.Message)
	}
}

const listChangesQuery = `
query ItemUpdates($since: Date!, $cursor: String, $limit: Int!) {
	itemUpdates(since: $since, after: $cursor, first: $limit) {
		edges {
			updateReason
			itemID
			item {
				id slug url title description author siteName image
				state contentReader wordsCount
				isArchived readingProgressPercent readingProgressAnchorIndex
				savedAt readAt publishedAt updatedAt
				labels { id name color description }
				highlights {
					id shortId type quote prefix suffix patch annotation
					createdByMe updatedAt
					labels { id name color description }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}`

func (c *GraphQLClient) ListChanges(ctx context.Context, since time.Time, cursor *string, limit int) (*ChangePage, error) {
	variables := map[string]interface{}{
		"since": since.UTC().Format(time.RFC3339),
		"limit": limit,
	}
	if cursor != nil {
		variables["cursor"] = *cursor
	}

	data := struct {
		ItemUpdates struct {
			Edges []struct {
				UpdateReason string      `json:"updateReason"`
				ItemID       string      `json:"itemID"`
				Item         *RemoteItem `json:"item"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool    `json:"hasNextPage"`
				EndCursor   *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"itemUpdates"`
	}{}

	if err := c.do(ctx, listChangesQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &ChangePage{
		Cursor:  data.ItemUpdates.PageInfo.EndCursor,
		HasMore: data.ItemUpdates.PageInfo.HasNextPage,
	}
	for _, edge := range data.ItemUpdates.Edges {
		if edge.UpdateReason == "DELETED" {
			page.DeletedItemIDs = append(page.DeletedItemIDs, edge.ItemID)
			continue
		}
		if edge.Item == nil {
			// A non-delete edge without an item is a server bug; skip the
			// edge rather than failing the page.
			continue
		}
		page.Items = append(page.Items, *edge.Item)
	}

	return page, nil
}

const fetchContentQuery = `
query ItemContent($id: ID!) {
	itemContent(id: $id) {
		state
		content
		item {
			id slug url title description author siteName image
			state contentReader wordsCount
			isArchived readingProgressPercent readingProgressAnchorIndex
			savedAt readAt publishedAt updatedAt
			labels { id name color description }
		}
		highlights {
			id shortId type quote prefix suffix patch annotation
			createdByMe updatedAt
			labels { id name color description }
		}
	}
}`

func (c *GraphQLClient) FetchContent(ctx context.Context, itemID string) (*ContentResult, error) {
	data := struct {
		ItemContent struct {
			State      string            `json:"state"`
			Content    *string           `json:"content"`
			Item       *RemoteItem       `json:"item"`
			Highlights []RemoteHighlight `json:"highlights"`
		} `json:"itemContent"`
	}{}

	if err := c.do(ctx, fetchContentQuery, map[string]interface{}{"id": itemID}, &data); err != nil {
		return nil, err
	}

	state := data.ItemContent.State
	if state == "" {
		// Older items return no state but the content is almost always there.
		state = "SUCCEEDED"
	}

	return &ContentResult{
		State:      state,
		HTML:       data.ItemContent.Content,
		Item:       data.ItemContent.Item,
		Highlights: data.ItemContent.Highlights,
	}, nil
}

const createItemMutation = `
mutation SaveURL($input: SaveURLInput!) {
	saveURL(input: $input) {
		... on SaveSuccess { itemID slug }
		... on SaveError { errorCodes }
	}
}`

func (c *GraphQLClient) CreateItem(ctx context.Context, req CreateItemRequest) (*CreateItemResult, error) {
	input := map[string]interface{}{
		"url":             req.URL,
		"clientRequestId": req.ClientRequestID,
	}
	if req.Title != "" {
		input["title"] = req.Title
	}
	if req.OriginalHTML != nil {
		input["originalContent"] = *req.OriginalHTML
	}

	data := struct {
		SaveURL struct {
			ItemID     string   `json:"itemID"`
			Slug       string   `json:"slug"`
			ErrorCodes []string `json:"errorCodes"`
		} `json:"saveURL"`
	}{}

	if err := c.do(ctx, createItemMutation, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}
	if len(data.SaveURL.ErrorCodes) > 0 {
		return nil, errcodes.Decode(data.SaveURL.ErrorCodes[0])
	}

	return &CreateItemResult{ServerID: data.SaveURL.ItemID, Slug: data.SaveURL.Slug}, nil
}

const updateItemMutation = `
mutation UpdateItem($input: UpdateItemInput!) {
	updateItem(input: $input) {
		... on UpdateSuccess { itemID }
		... on UpdateError { errorCodes }
	}
}`

func (c *GraphQLClient) UpdateItem(ctx context.Context, id string, patch ItemPatch) error {
	input := map[string]interface{}{"itemID": id}
	if patch.Title != nil {
		input["title"] = *patch.Title
	}
	if patch.Description != nil {
		input["description"] = *patch.Description
	}
	if patch.IsArchived != nil {
		input["archived"] = *patch.IsArchived
	}
	if patch.ReadAt != nil {
		input["readAt"] = patch.ReadAt.UTC().Format(time.RFC3339)
	}

	return c.doUpdate(ctx, updateItemMutation, "updateItem", input)
}

const deleteItemMutation = `
mutation DeleteItem($input: DeleteItemInput!) {
	deleteItem(input: $input) {
		... on UpdateSuccess { itemID }
		... on UpdateError { errorCodes }
	}
}`

func (c *GraphQLClient) DeleteItem(ctx context.Context, id string) error {
	return c.doUpdate(ctx, deleteItemMutation, "deleteItem", map[string]interface{}{"itemID": id})
}

const updateProgressMutation = `
mutation SaveReadingProgress($input: SaveReadingProgressInput!) {
	saveReadingProgress(input: $input) {
		... on UpdateSuccess { itemID }
		... on UpdateError { errorCodes }
	}
}`

func (c *GraphQLClient) UpdateReadingProgress(ctx context.Context, id string, progress float64, anchor int) error {
	return c.doUpdate(ctx, updateProgressMutation, "saveReadingProgress", map[string]interface{}{
		"itemID":                     id,
		"readingProgressPercent":     progress,
		"readingProgressAnchorIndex": anchor,
	})
}

const setLabelsMutation = `
mutation SetLabels($input: SetLabelsInput!) {
	setLabels(input: $input) {
		... on UpdateSuccess { itemID }
		... on UpdateError { errorCodes }
	}
}`

func (c *GraphQLClient) SetLabels(ctx context.Context, itemID string, labelIDs []string) error {
	return c.doUpdate(ctx, setLabelsMutation, "setLabels", map[string]interface{}{
		"itemID":   itemID,
		"labelIDs": labelIDs,
	})
}

const setHighlightLabelsMutation = `
mutation SetHighlightLabels($input: SetHighlightLabelsInput!) {
	setHighlightLabels(input: $input) {
		... on UpdateSuccess { itemID }
		... on UpdateError { errorCodes }
	}
}`

func (c *GraphQLClient) SetHighlightLabels(ctx context.Context, highlightID string, labelIDs []string) error {
	return c.doUpdate(ctx, setHighlightLabelsMutation, "setHighlightLabels", map[string]interface{}{
		"highlightID": highlightID,
		"labelIDs":    labelIDs,
	})
}

// doUpdate runs a mutation that returns the UpdateSuccess/UpdateError union.
func (c *GraphQLClient) doUpdate(ctx context.Context, mutation, field string, input map[string]interface{}) error {
	data := map[string]struct {
		ItemID     string   `json:"itemID"`
		ErrorCodes []string `json:"errorCodes"`
	}{}

	if err := c.do(ctx, mutation, map[string]interface{}{"input": input}, &data); err != nil {
		return err
	}

	result := data[field]
	if len(result.ErrorCodes) > 0 {
		switch result.ErrorCodes[0] {
		case "NOT_FOUND":
			return errcodes.NotFound("Item")
		case "UNAUTHORIZED":
			return errcodes.Unauthorized()
		default:
			return errcodes.Decode(result.ErrorCodes[0])
		}
	}

	return nil
}

const createLabelMutation = `
mutation CreateLabel($input: CreateLabelInput!) {
	createLabel(input: $input) {
		... on LabelSuccess { label { id name color description } }
		... on LabelError { errorCodes }
	}
}`

func (c *GraphQLClient) CreateLabel(ctx context.Context, name, color string) (*RemoteLabel, error) {
	data := struct {
		CreateLabel struct {
			Label      *RemoteLabel `json:"label"`
			ErrorCodes []string     `json:"errorCodes"`
		} `json:"createLabel"`
	}{}

	err := c.do(ctx, createLabelMutation, map[string]interface{}{
		"input": map[string]interface{}{"name": name, "color": color},
	}, &data)
	if err != nil {
		return nil, err
	}
	if len(data.CreateLabel.ErrorCodes) > 0 {
		if data.CreateLabel.ErrorCodes[0] == "LABEL_ALREADY_EXISTS" {
			return nil, errcodes.Conflict("A label with that name already exists.")
		}
		return nil, errcodes.Decode(data.CreateLabel.ErrorCodes[0])
	}
	if data.CreateLabel.Label == nil {
		return nil, errcodes.Decode("createLabel returned no label")
	}

	return data.CreateLabel.Label, nil
}

const listLabelsQuery = `
query Labels {
	labels { id name color description }
}`

func (c *GraphQLClient) ListLabels(ctx context.Context) ([]RemoteLabel, error) {
	data := struct {
		Labels []RemoteLabel `json:"labels"`
	}{}

	if err := c.do(ctx, listLabelsQuery, nil, &data); err != nil {
		return nil, err
	}

	return data.Labels, nil
}

const searchQuery = `
query Search($query: String!, $cursor: String, $limit: Int!) {
	search(query: $query, after: $cursor, first: $limit) {
		edges {
			node {
				id slug url title description author siteName image
				state contentReader wordsCount
				isArchived readingProgressPercent readingProgressAnchorIndex
				savedAt readAt publishedAt updatedAt
				labels { id name color description }
				highlights {
					id shortId type quote prefix suffix patch annotation
					createdByMe updatedAt
					labels { id name color description }
				}
			}
		}
		pageInfo { hasNextPage endCursor }
	}
}`

func (c *GraphQLClient) Search(ctx context.Context, query string, cursor *string, limit int) (*SearchPage, error) {
	variables := map[string]interface{}{
		"query": query,
		"limit": limit,
	}
	if cursor != nil {
		variables["cursor"] = *cursor
	}

	data := struct {
		Search struct {
			Edges []struct {
				Node RemoteItem `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool    `json:"hasNextPage"`
				EndCursor   *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"search"`
	}{}

	if err := c.do(ctx, searchQuery, variables, &data); err != nil {
		return nil, err
	}

	page := &SearchPage{
		Cursor:  data.Search.PageInfo.EndCursor,
		HasMore: data.Search.PageInfo.HasNextPage,
	}
	for _, edge := range data.Search.Edges {
		page.Items = append(page.Items, edge.Node)
	}

	return page, nil
}

// FetchPDF downloads the original document bytes. It goes straight to the
// item's url rather than through GraphQL since the stored PDF is served as a
// plain file.
func (c *GraphQLClient) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Authorization", c.session.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errcodes.Network(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errcodes.NotFound("Document")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errcodes.Network(resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errcodes.Network(err.Error())
	}

	return data, nil
}
