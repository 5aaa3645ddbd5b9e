package kansoku

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Update is one view pushed over the event stream. Stale is set when the
// server's last poll failed and View is the last good one.
type Update struct {
	View  View
	Stale bool
}

// Subscribe opens the server's event stream and calls fn for every view it
// pushes, starting with the current one. It blocks until ctx is done, the
// stream ends, or fn returns an error; a cancelled ctx returns nil.
func (c *Client) Subscribe(ctx context.Context, fn func(Update) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/subscribe", nil)
	if err != nil {
		return fmt.Errorf("kansoku: create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("kansoku: subscribe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return handleResponse(resp, nil)
	}

	err = readEvents(bufio.NewScanner(resp.Body), fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses Server-Sent Events from sc. Comment lines (keepalives)
// and events other than "view" and "stale" are skipped.
func readEvents(sc *bufio.Scanner, fn func(Update) error) error {
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var event string
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "view" || event == "stale" {
				var u Update
				if err := json.Unmarshal([]byte(data.String()), &u.View); err != nil {
					return fmt.Errorf("kansoku: decode %s event: %w", event, err)
				}
				u.Stale = event == "stale" || u.View.Stale
				if err := fn(u); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("kansoku: read stream: %w", err)
	}
	return nil
}
