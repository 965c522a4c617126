// Package codec serializes the connection list that the store encrypts.
//
// The plaintext is a versioned JSON document so fields can be added later
// without breaking readers of older stores.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheMichaelB/lssh/internal/models"
)

// SchemaVersion is written into every encoded document.
const SchemaVersion = 1

var (
	ErrMalformed         = errors.New("malformed connection document")
	ErrUnsupportedSchema = errors.New("unsupported connection document version")
)

// document is the on-wire layout of the plaintext.
type document struct {
	SchemaVersion int                       `json:"schema_version"`
	Connections   []models.ConnectionRecord `json:"connections"`
}

// Encode serializes records. A nil or empty list encodes as an empty array.
func Encode(records []models.ConnectionRecord) ([]byte, error) {
	if records == nil {
		records = []models.ConnectionRecord{}
	}

	data, err := json.Marshal(document{
		SchemaVersion: SchemaVersion,
		Connections:   records,
	})
	if err != nil {
		return nil, fmt.Errorf("encode connections: %w", err)
	}
	return data, nil
}

// Decode parses a document produced by Encode. A bare JSON array of
// records is also accepted. The result is never nil.
func Decode(data []byte) ([]models.ConnectionRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	var records []models.ConnectionRecord

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if doc.SchemaVersion > SchemaVersion {
			return nil, fmt.Errorf("%w: %d (newest supported %d)", ErrUnsupportedSchema, doc.SchemaVersion, SchemaVersion)
		}
		if doc.SchemaVersion < 1 {
			return nil, fmt.Errorf("%w: missing schema_version", ErrMalformed)
		}
		records = doc.Connections
	}

	if records == nil {
		records = []models.ConnectionRecord{}
	}
	return records, nil
}
