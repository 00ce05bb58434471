// Package paging implements keyset pagination over (created_at, id) ordered
// listings. Tokens are opaque to clients.
package paging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultSize = 1000
	MaxSize     = 1000
)

var ErrInvalidToken = errors.New("invalid page token")

// Cursor is the last row of a page. The next page starts strictly after it.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// After reports whether a row sorts after c in (created_at, id) order
func (c Cursor) After(createdAt time.Time, id string) bool {
	if cmp := createdAt.Compare(c.CreatedAt); cmp != 0 {
		return cmp > 0
	}
	return id > c.ID
}

// Request is a page size and the token returned with the previous page.
// An empty token starts from the beginning.
type Request struct {
	Size  int
	Token string
}

// Limit clamps Size into [1, MaxSize], using DefaultSize for zero
func (r Request) Limit() int {
	switch {
	case r.Size <= 0:
		return DefaultSize
	case r.Size > MaxSize:
		return MaxSize
	}
	return r.Size
}

// Cursor decodes the token. ok is false for the first page.
func (r Request) Cursor() (c Cursor, ok bool, err error) {
	if r.Token == "" {
		return Cursor{}, false, nil
	}
	c, err = Decode(r.Token)
	return c, err == nil, err
}

// FromQuery reads page_size and page_token
func FromQuery(q url.Values) (Request, error) {
	req := Request{Token: q.Get("page_token")}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Request{}, fmt.Errorf("page_size must be a positive integer, got %q", raw)
		}
		req.Size = n
	}
	if _, _, err := req.Cursor(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func Encode(c Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func Decode(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	nanos, id, found := strings.Cut(string(raw), ":")
	if !found || id == "" {
		return Cursor{}, ErrInvalidToken
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
