package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot/models"

	apperrors "github.com/edgard/surveybot/internal/errors"
)

var allowedUpdates = []string{"message", "callback_query"}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type getUpdatesResponse struct {
	OK          bool            `json:"ok"`
	Result      []models.Update `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// FetchUpdates calls getUpdates directly. The library's poller owns its own
// offset, while here the cursor belongs to the dispatcher. A 409 answer means
// another session holds the long poll and is reported as a Conflict error.
func (c *Client) FetchUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]models.Update, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout+timeout)
	defer cancel()

	body, err := json.Marshal(getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, apperrors.NewValidationError("failed to encode getUpdates request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/bot"+c.token+"/getUpdates", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewTransportError("failed to build getUpdates request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTransportError("getUpdates timed out", err)
		}
		return nil, apperrors.NewTransportError("getUpdates request failed", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var decoded getUpdatesResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode == http.StatusConflict || decoded.ErrorCode == http.StatusConflict {
		return nil, apperrors.NewConflictError("getUpdates", errors.New(decoded.Description))
	}
	if decodeErr != nil {
		return nil, apperrors.NewTransportError(fmt.Sprintf("failed to decode getUpdates response (status %d)", resp.StatusCode), decodeErr)
	}
	if !decoded.OK {
		return nil, apperrors.NewTransportError(
			fmt.Sprintf("getUpdates failed with code %d", decoded.ErrorCode), errors.New(decoded.Description))
	}
	return decoded.Result, nil
}
