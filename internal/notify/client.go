package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Event is the payload sent to the notification service for every lifecycle
// transition.
type Event struct {
	ManualID       uint64  `json:"manual_id"`
	ManualTitle    string  `json:"manual_title"`
	RevisionNumber string  `json:"revision_number"`
	ActorID        uint64  `json:"actor_id"`
	Reason         *string `json:"reason,omitempty"`
}

type Client interface {
	SendReviewRequest(ctx context.Context, event Event) error
	SendApproval(ctx context.Context, event Event) error
	SendRejection(ctx context.Context, event Event) error
}

// HTTPClient calls the notification collaborator service. Delivery is best
// effort; callers route it through the Dispatcher after commit.
type HTTPClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, secret string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *HTTPClient) SendReviewRequest(ctx context.Context, event Event) error {
	return c.post(ctx, "review-requested", event)
}

func (c *HTTPClient) SendApproval(ctx context.Context, event Event) error {
	return c.post(ctx, "approved", event)
}

func (c *HTTPClient) SendRejection(ctx context.Context, event Event) error {
	return c.post(ctx, "rejected", event)
}

func (c *HTTPClient) post(ctx context.Context, kind string, event Event) error {
	url := fmt.Sprintf(
		"%s/internal/notifications/%s",
		c.baseURL,
		kind,
	)

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf(
			"notifier error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	return nil
}
