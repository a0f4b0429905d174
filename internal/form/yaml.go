package form

import (
	"fmt"
	"io"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// LoadYAML reads rows from a YAML document of the form
//
//	peers:
//	  - name: vps1
//	    endpoint: 1.2.3.4:51820
//	routes:
//	  - table: wg
//	    dest: 10.0.0.0/8
//	marks:
//	  - fwmark: 100
//	    ports: 1000-2000
//
// Tables absent from the file are reported as absent via Has.
func LoadYAML(r io.Reader) (*Memory, error) {
	var raw map[string][]map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	m := NewMemory()
	for _, table := range Tables {
		entries, ok := raw[string(table)]
		if !ok {
			continue
		}
		rows := make([]Row, 0, len(entries))
		for _, entry := range entries {
			row := Row{}
			for key, value := range entry {
				if value == nil {
					continue
				}
				row[key] = cast.ToString(value)
			}
			rows = append(rows, row)
		}
		m.tables[table] = rows
	}
	return m, nil
}

// Has reports whether table was populated explicitly.
func (m *Memory) Has(table Table) bool {
	_, ok := m.tables[table]
	return ok
}
