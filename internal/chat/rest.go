package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RestClient implements Messenger, Uploader, and Directory against the chat
// platform's REST API.
type RestClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

var (
	_ Messenger = (*RestClient)(nil)
	_ Uploader  = (*RestClient)(nil)
	_ Directory = (*RestClient)(nil)
)

// NewRestClient builds a RestClient for the platform at baseURL,
// authenticating with token.
func NewRestClient(baseURL, token string) *RestClient {
	return &RestClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// selfVisiblePayload is the message body for an ephemeral post.
type selfVisiblePayload struct {
	RoomID      string `json:"room_id"`
	RecipientID string `json:"recipient_id"`
	ThreadID    string `json:"thread_id,omitempty"`
	Text        string `json:"text"`
}

// SendSelfVisible posts an ephemeral message only recipient can see.
func (c *RestClient) SendSelfVisible(ctx context.Context, room Room, recipient User, threadID, text string) error {
	payload := selfVisiblePayload{
		RoomID:      room.ID,
		RecipientID: recipient.ID,
		ThreadID:    threadID,
		Text:        text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/messages.ephemeral", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	return c.do(req)
}

// UploadFile uploads data as a multipart form into the room's upload endpoint.
func (c *RestClient) UploadFile(ctx context.Context, room Room, owner User, filename string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.WriteField("user_id", owner.ID); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/rooms/%s/upload", c.baseURL, room.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.auth(req)
	return c.do(req)
}

// UserByID resolves a user, mapping 404 to ErrNotFound.
func (c *RestClient) UserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/v1/users/"+id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RoomByID resolves a room, mapping 404 to ErrNotFound.
func (c *RestClient) RoomByID(ctx context.Context, id string) (*Room, error) {
	var r Room
	if err := c.get(ctx, "/api/v1/rooms/"+id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *RestClient) auth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *RestClient) do(req *http.Request) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("chat platform: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat platform: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *RestClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.auth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("chat platform: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat platform: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
