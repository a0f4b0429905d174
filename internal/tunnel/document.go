package tunnel

import (
	"bytes"
	"encoding/json"
)

// Document is a loosely typed configuration document as received from the
// wire. It may be partial or carry wrongly typed fields.
type Document map[string]any

// DecodeDocument parses raw JSON into a Document. Numbers are kept as
// json.Number so large values survive coercion intact.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ToDocument converts a typed config into its Document form.
func (c Config) ToDocument() Document {
	data, err := json.Marshal(c)
	if err != nil {
		return Document{}
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}
	}
	return doc
}
