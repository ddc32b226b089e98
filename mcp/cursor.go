package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const defaultPageLimit = 50

// pageCursor is the decoded form of a pagination cursor. The wire form is
// base64 of the JSON object; callers treat it as opaque. It carries the
// entire pagination state, nothing is kept server-side.
type pageCursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

func defaultCursor() pageCursor {
	return pageCursor{Offset: 0, Limit: defaultPageLimit}
}

func encodeCursor(c pageCursor) string {
	raw, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (pageCursor, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pageCursor{}, fmt.Errorf("cursor is not valid base64: %w", err)
	}

	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return pageCursor{}, fmt.Errorf("cursor payload is not valid JSON: %w", err)
	}
	if c.Offset < 0 {
		return pageCursor{}, fmt.Errorf("cursor offset must not be negative")
	}
	if c.Limit <= 0 {
		return pageCursor{}, fmt.Errorf("cursor limit must be positive")
	}
	return c, nil
}

// pageBounds slices a list of n items by the cursor. It returns the start
// and end indexes of the current page and, when items remain past the page,
// the encoded cursor for the next one.
func pageBounds(n int, c pageCursor) (int, int, string) {
	start := c.Offset
	if start > n {
		start = n
	}
	end := start + c.Limit
	if end > n {
		end = n
	}

	var next string
	if end < n {
		next = encodeCursor(pageCursor{Offset: c.Offset + c.Limit, Limit: c.Limit})
	}
	return start, end, next
}
