//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../mocks/mock_rest_client.go -package=mocks
// Package rest is the authenticated HTTP client for the collaboration
// API. It owns request plumbing only; all responses go through the
// normalize package before they reach engine state.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"convosync/domain"
	"convosync/normalize"
)

const DefaultTimeout = 30 * time.Second

// IConversationAPI is the REST surface the engine consumes.
type IConversationAPI interface {
	ListContacts(ctx context.Context) ([]domain.Contact, error)
	ListThreads(ctx context.Context) ([]domain.Conversation, error)
	ListStories(ctx context.Context) ([]domain.Story, error)
	ListQuickReplies(ctx context.Context) ([]domain.QuickReply, error)
	ListMembers(ctx context.Context, conversationID string) ([]domain.Member, error)
	GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	SendMessage(ctx context.Context, req SendRequest) (domain.Message, error)
	CreateThread(ctx context.Context, req CreateThreadRequest) (domain.Conversation, error)
	React(ctx context.Context, conversationID, messageID, emoji string) error
	Pin(ctx context.Context, conversationID, messageID string, pinned bool) error
	DeleteMessage(ctx context.Context, conversationID, messageID string) error
	MarkRead(ctx context.Context, conversationID string) error
	Search(ctx context.Context, req SearchRequest) ([]domain.Message, error)
	Upload(ctx context.Context, req UploadRequest) (domain.Attachment, error)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	validate   *validator.Validate
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func NewClient(log *slog.Logger, baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		validate:   validator.New(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN"}
		_ = json.Unmarshal(data, apiErr)
		return nil, apiErr
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/contacts", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]rawContact](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r rawContact, _ int) domain.Contact {
		return domain.Contact{UserID: r.UserID.String(), DisplayName: r.DisplayName, AvatarURL: r.AvatarURL}
	}), nil
}

func (c *Client) ListThreads(ctx context.Context) ([]domain.Conversation, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/threads", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]normalize.RawThread](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r normalize.RawThread, _ int) domain.Conversation {
		return normalize.Thread(r)
	}), nil
}

func (c *Client) ListStories(ctx context.Context) ([]domain.Story, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/stories", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]rawStory](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r rawStory, _ int) domain.Story {
		return domain.Story{
			ID:        r.ID.String(),
			AuthorID:  r.AuthorID.String(),
			MediaURL:  r.MediaURL,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		}
	}), nil
}

func (c *Client) ListQuickReplies(ctx context.Context) ([]domain.QuickReply, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/quick-replies", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]rawQuickReply](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r rawQuickReply, _ int) domain.QuickReply {
		return domain.QuickReply{ID: r.ID.String(), Text: r.Text}
	}), nil
}

func (c *Client) ListMembers(ctx context.Context, conversationID string) ([]domain.Member, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/threads/"+url.PathEscape(conversationID)+"/members", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]normalize.RawMember](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r normalize.RawMember, _ int) domain.Member {
		return domain.Member{UserID: r.UserID.String(), DisplayName: r.DisplayName, Role: r.Role}
	}), nil
}

func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/threads/"+url.PathEscape(conversationID)+"/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]normalize.RawMessage](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r normalize.RawMessage, _ int) domain.Message {
		return normalize.Message(r)
	}), nil
}

func (c *Client) SendMessage(ctx context.Context, req SendRequest) (domain.Message, error) {
	if err := c.validate.Struct(req); err != nil {
		return domain.Message{}, fmt.Errorf("invalid send request: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/messages", req, nil)
	if err != nil {
		return domain.Message{}, err
	}
	raw, err := decodeJSON[normalize.RawMessage](data)
	if err != nil {
		return domain.Message{}, err
	}
	return normalize.Message(raw), nil
}

func (c *Client) CreateThread(ctx context.Context, req CreateThreadRequest) (domain.Conversation, error) {
	if err := c.validate.Struct(req); err != nil {
		return domain.Conversation{}, fmt.Errorf("invalid thread request: %w", err)
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/threads", req, nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	raw, err := decodeJSON[normalize.RawThread](data)
	if err != nil {
		return domain.Conversation{}, err
	}
	return normalize.Thread(raw), nil
}

// React toggles the caller's reaction server-side: the same call adds
// or removes depending on current membership.
func (c *Client) React(ctx context.Context, conversationID, messageID, emoji string) error {
	_, err := c.doRequest(ctx, http.MethodPost,
		"/api/messages/"+url.PathEscape(messageID)+"/reactions",
		map[string]string{"conversation_id": conversationID, "emoji": emoji}, nil)
	return err
}

func (c *Client) Pin(ctx context.Context, conversationID, messageID string, pinned bool) error {
	action := "pin"
	if !pinned {
		action = "unpin"
	}
	_, err := c.doRequest(ctx, http.MethodPost,
		"/api/messages/"+url.PathEscape(messageID)+"/"+action,
		map[string]string{"conversation_id": conversationID}, nil)
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete,
		"/api/messages/"+url.PathEscape(messageID), nil,
		map[string]string{"conversation_id": conversationID})
	return err
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	_, err := c.doRequest(ctx, http.MethodPost,
		"/api/threads/"+url.PathEscape(conversationID)+"/read", nil, nil)
	return err
}

func (c *Client) Search(ctx context.Context, req SearchRequest) ([]domain.Message, error) {
	query := map[string]string{"q": req.Query}
	if req.SenderID != "" {
		query["sender_id"] = req.SenderID
	}
	if req.ConversationID != "" {
		query["conversation_id"] = req.ConversationID
	}
	if req.Kind != "" {
		query["kind"] = req.Kind
	}
	if !req.After.IsZero() {
		query["after"] = req.After.Format(time.RFC3339)
	}
	if !req.Before.IsZero() {
		query["before"] = req.Before.Format(time.RFC3339)
	}
	if req.Limit > 0 {
		query["limit"] = strconv.Itoa(req.Limit)
	}

	data, err := c.doRequest(ctx, http.MethodGet, "/api/messages/search", nil, query)
	if err != nil {
		return nil, err
	}
	raw, err := decodeJSON[[]normalize.RawMessage](data)
	if err != nil {
		return nil, err
	}
	return lo.Map(raw, func(r normalize.RawMessage, _ int) domain.Message {
		return normalize.Message(r)
	}), nil
}

// Upload pushes one file as multipart form data and returns the
// attachment descriptor to reference from a later send.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (domain.Attachment, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	if req.ContentType != "" {
		header.Set("Content-Type", req.ContentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.Attachment{}, err
	}
	if _, err := part.Write(req.Data); err != nil {
		return domain.Attachment{}, err
	}
	if err := writer.WriteField("context", req.Context); err != nil {
		return domain.Attachment{}, err
	}
	if err := writer.WriteField("conversationId", req.ConversationID); err != nil {
		return domain.Attachment{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.Attachment{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &buf)
	if err != nil {
		return domain.Attachment{}, err
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Attachment{}, err
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN"}
		_ = json.Unmarshal(data, apiErr)
		return domain.Attachment{}, apiErr
	}

	raw, err := decodeJSON[rawAttachmentResponse](data)
	if err != nil {
		return domain.Attachment{}, err
	}
	kind := domain.AttachmentKind(raw.Type)
	switch kind {
	case domain.AttachmentImage, domain.AttachmentAudio, domain.AttachmentFile:
	default:
		kind = domain.AttachmentFile
	}
	return domain.Attachment{
		ID:       raw.ID.String(),
		Kind:     kind,
		URL:      raw.URL,
		Name:     raw.Name,
		Duration: time.Duration(raw.Duration * float64(time.Second)),
	}, nil
}
