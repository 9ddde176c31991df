package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidToken is returned for a page token this package did not produce.
var ErrInvalidToken = errors.New("invalid pagination token")

// Cursor is a keyset position for lists ordered by (timestamp DESC, id DESC).
type Cursor struct {
	ID     uint64 `json:"id"`
	AtUnix int64  `json:"at_unix,omitempty"` // millis
}

// After builds the cursor pointing past a row.
func After(id uint64, at time.Time) Cursor {
	return Cursor{ID: id, AtUnix: at.UnixMilli()}
}

// IsZero reports whether c is the first-page cursor.
func (c Cursor) IsZero() bool { return c.ID == 0 && c.AtUnix == 0 }

func (c Cursor) At() time.Time { return time.UnixMilli(c.AtUnix).UTC() }

// Token renders c as an opaque URL-safe string.
func (c Cursor) Token() string {
	// two integer fields, Marshal cannot fail
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Parse reads a token produced by Token. A nil or empty token is the first page.
func Parse(token *string) (Cursor, error) {
	var c Cursor
	if token == nil || *token == "" {
		return c, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(*token)
	if err != nil {
		return c, ErrInvalidToken
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Trim cuts rows fetched with limit+1 down to limit. The returned token
// points past the last kept row and is nil on the final page.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, *string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, nil
	}
	token := key(rows[limit-1]).Token()
	return rows[:limit], &token
}
