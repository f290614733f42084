package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timeFormat = time.RFC3339Nano // Use a precise time format

// Cursor identifies the last record of a page. Records are ordered by sequence, and the
// creation time travels along so tokens stay readable in logs.
type Cursor struct {
	CreatedAt time.Time
	Sequence  int64
}

// EncodeToken creates a base64 encoded token from a record creation time and journal sequence.
func EncodeToken(createdAt time.Time, sequence int64) string {
	tokenStr := fmt.Sprintf("%s|%d", createdAt.UTC().Format(timeFormat), sequence)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeToken parses the base64 encoded token back into a cursor.
func DecodeToken(token string) (Cursor, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, fmt.Errorf("invalid pagination token format (split)")
	}

	createdAt, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (created_at parse): %w", err)
	}

	sequence, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || sequence <= 0 {
		return Cursor{}, fmt.Errorf("invalid pagination token format (sequence parse)")
	}

	return Cursor{CreatedAt: createdAt, Sequence: sequence}, nil
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
