package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/myeasy-ai/fitquest/internal/infra/metrics"
)

// blobVersion is the envelope version written by this package.
const blobVersion = 1

// envelope wraps a stored list so its shape can evolve independently of
// the table schema.
type envelope struct {
	Version int             `json:"version"`
	Items   json.RawMessage `json:"items"`
}

// encodeBlob wraps items in an envelope. A nil slice is stored as NULL so
// "absent" survives a round trip.
func encodeBlob[T any](items []T) (sql.NullString, error) {
	if items == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	out, err := json.Marshal(envelope{Version: blobVersion, Items: raw})
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(out), Valid: true}, nil
}

// decodeBlob reads a list column. NULL yields nil. Bare JSON arrays from
// older writers are accepted. Anything undecodable yields an empty list and
// is logged, never returned as an error.
func decodeBlob[T any](col sql.NullString, field string, log *slog.Logger) []T {
	if !col.Valid {
		return nil
	}
	items, err := unwrapBlob[T]([]byte(col.String))
	if err != nil {
		metrics.BlobDecodeFailures.WithLabelValues(field).Inc()
		log.Warn("discarding undecodable field", "field", field, "error", err)
		return []T{}
	}
	return items
}

func unwrapBlob[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []T{}, nil
	}

	payload := data
	if data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		if env.Version < 1 || env.Version > blobVersion {
			return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
		}
		payload = env.Items
		if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
			return []T{}, nil
		}
	}

	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
