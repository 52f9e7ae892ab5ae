package searchindex

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
)

// assignmentRegex matches the generator prologue: var documenterSearchIndex =
var assignmentRegex = regexp.MustCompile(`^(?:var|let|const)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a search index in either the generated JS form or as a bare
// JSON object. The payload is checked against the record schema before it
// is decoded, so every returned record carries all five fields.
func Decode(data []byte) (*Index, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	name, payload, err := splitAssignment(data)
	if err != nil {
		return nil, err
	}

	if err := validateSchema(payload); err != nil {
		return nil, err
	}

	index := &Index{Name: name}
	if err := json.Unmarshal(payload, index); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	if index.Docs == nil {
		index.Docs = []Record{}
	}
	return index, nil
}

// splitAssignment separates the JS variable name from the JSON payload
func splitAssignment(data []byte) (string, []byte, error) {
	if data[0] == '{' {
		return DefaultVariable, data, nil
	}

	loc := assignmentRegex.FindSubmatchIndex(data)
	if loc == nil {
		return "", nil, ErrNotSearchIndex
	}
	name := string(data[loc[2]:loc[3]])

	payload := bytes.TrimSpace(data[loc[1]:])
	payload = bytes.TrimSuffix(payload, []byte(";"))
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return "", nil, fmt.Errorf("%w: %s is not bound to an object", ErrNotSearchIndex, name)
	}
	return name, payload, nil
}

// ReadFile reads and decodes a search index file
func ReadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}
	index, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return index, nil
}

// Encode writes the index in the layout the generator emits:
//
//	var documenterSearchIndex = {"docs":
//	[{...},{...}]
//	}
func (ix *Index) Encode(w io.Writer) error {
	name := ix.Name
	if name == "" {
		name = DefaultVariable
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "var %s = {\"docs\":\n", name); err != nil {
		return err
	}
	if err := ix.encodeDocs(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// EncodeJSON writes the bare {"docs":[...]} object
func (ix *Index) EncodeJSON(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(`{"docs":`); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := ix.encodeDocs(&buf); err != nil {
		return err
	}
	// drop the encoder's trailing newline so the object stays on one line
	if _, err := bw.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))); err != nil {
		return err
	}
	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// encodeDocs writes the record array followed by a newline
func (ix *Index) encodeDocs(w io.Writer) error {
	docs := ix.Docs
	if docs == nil {
		docs = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	_, err := w.Write(unescapeLineSeparators(buf.Bytes()))
	return err
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json
// always emits back into raw UTF-8, which is what the generator writes.
// Escaped backslashes are copied as pairs, so a literal "\\u2028" survives.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}

	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if i+5 < len(b) && b[i+1] == 'u' && string(b[i+2:i+5]) == "202" && (b[i+5] == '8' || b[i+5] == '9') {
			if b[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// Bytes returns the JS form of the index
func (ix *Index) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := ix.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
