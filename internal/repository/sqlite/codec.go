package sqlite

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

// encode serializes a record and enforces the size bound.
func (r *BaseRepository) encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to encode record: %w", err))
	}
	if len(data) > r.maxRecordSize {
		return nil, apperrors.InvalidPayload(
			fmt.Sprintf("record exceeds maximum encoded size of %d bytes", r.maxRecordSize), nil)
	}
	return data, nil
}

// decodeRecord deserializes a stored record. A record that fails to decode
// was corrupted after a correct write, which the store cannot recover from.
func decodeRecord(data []byte, v interface{}) {
	if err := json.Unmarshal(data, v); err != nil {
		panic(fmt.Sprintf("corrupt record in store: %v", err))
	}
}
