// Package agent relays natural-language weather questions to the chat
// backend ("Vai chover em Vilhena amanhã?").
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/meetyo/meetyo-web/internal/upstream"
)

// NoAnswer is returned in place of a blank backend answer.
const NoAnswer = "(sem resposta)"

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrBackend      = errors.New("chat backend error")
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// Client posts questions to <baseURL>/api/chat.
type Client struct {
	endpoint string
	httpCfg  upstream.HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/chat",
		httpCfg:  upstream.HTTPClientConfig{Client: client},
		circuit:  upstream.NewBreaker("chat-backend"),
	}
}

// Ask sends message and returns the trimmed answer.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", err
	}

	resp, err := upstream.Do(ctx, c.httpCfg, c.circuit, upstream.RequireSuccess, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}

	if answer := strings.TrimSpace(out.Answer); answer != "" {
		return answer, nil
	}
	return NoAnswer, nil
}
