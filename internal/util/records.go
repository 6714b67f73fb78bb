package util

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SplitRecords splits a document holding one JSON object, a JSON array of
// objects, or newline-delimited objects into raw records.
func SplitRecords(blob []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var out []json.RawMessage
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		if json.Valid(trimmed) {
			return []json.RawMessage{json.RawMessage(trimmed)}, nil
		}
		return splitLines(trimmed)
	default:
		return nil, errors.New("expected a JSON object, array or NDJSON")
	}
}

func splitLines(blob []byte) ([]json.RawMessage, error) {
	var out []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(blob))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNo)
		}
		out = append(out, json.RawMessage(append([]byte(nil), line...)))
	}
	return out, scanner.Err()
}
