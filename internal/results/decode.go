package results

import (
	"bytes"
	"encoding/json"
	"io"
)

// decodeRows parses raw as an array of objects, keeping key order. The second
// result is false for anything else, including an empty or malformed payload
// that is not an array.
func decodeRows(raw json.RawMessage) ([]Row, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, false
	}

	rows := []Row{}
	for dec.More() {
		row, ok := decodeObject(dec)
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
	}
	if tok, err := dec.Token(); err != nil || tok != json.Delim(']') {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return rows, true
}

// decodeObject reads one object from dec. It fails when the next value is not
// an object.
func decodeObject(dec *json.Decoder) (Row, bool) {
	tok, err := dec.Token()
	if err != nil {
		return Row{}, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Row{}, false
	}

	row := Row{Values: make(map[string]json.RawMessage)}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return Row{}, false
		}
		key, ok := kt.(string)
		if !ok {
			return Row{}, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return Row{}, false
		}
		if _, dup := row.Values[key]; !dup {
			row.Keys = append(row.Keys, key)
		}
		row.Values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return Row{}, false
	}
	return row, true
}
