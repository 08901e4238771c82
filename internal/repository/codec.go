package repository

import (
	"encoding/json"
	"fmt"
)

// Encode converts a json-tagged struct into a Record.
func Encode(v interface{}) (Record, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return rec, nil
}

// EncodeAll encodes every element of values.
func EncodeAll[T any](values []T) ([]Record, error) {
	out := make([]Record, 0, len(values))
	for _, v := range values {
		rec, err := Encode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Decode fills out from rec.
func Decode(rec Record, out interface{}) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// DecodeAll decodes records into a typed slice.
func DecodeAll[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := Decode(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
