// Package pagination implements the opaque cursor tokens used by list
// endpoints. A token captures the sort value and document ID of the last
// item on a page so Firestore queries can resume with StartAfter.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned when a page token cannot be decoded.
var ErrInvalidCursor = errors.New("pagination: invalid page token")

// EncodeCursor serialises a sort value and document ID into an opaque,
// URL-safe page token. The sort value type is tagged so DecodeCursor can
// restore it for the StartAfter clause.
func EncodeCursor(sortValue any, docID string) string {
	var encoded string
	switch v := sortValue.(type) {
	case time.Time:
		encoded = "t:" + v.UTC().Format(time.RFC3339Nano)
	case int64:
		encoded = "i:" + strconv.FormatInt(v, 10)
	case float64:
		encoded = "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	default:
		encoded = "s:" + fmt.Sprint(v)
	}
	return base64.RawURLEncoding.EncodeToString([]byte(encoded + "|" + docID))
}

// DecodeCursor parses a token produced by EncodeCursor back into the sort
// value and document ID pair.
func DecodeCursor(token string) (any, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 || len(parts[0]) < 2 {
		return nil, "", fmt.Errorf("%w: malformed payload", ErrInvalidCursor)
	}
	kind, raw := parts[0][:2], parts[0][2:]
	switch kind {
	case "t:":
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return ts, parts[1], nil
	case "i:":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return n, parts[1], nil
	case "f:":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return f, parts[1], nil
	case "s:":
		return raw, parts[1], nil
	default:
		return nil, "", fmt.Errorf("%w: unknown sort value kind", ErrInvalidCursor)
	}
}
