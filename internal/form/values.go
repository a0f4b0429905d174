package form

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FromValues builds an adapter from submitted form values whose keys have
// the shape "<table>.<index>.<field>", e.g. "peers.0.endpoint". Rows are
// ordered by index; other keys are ignored.
func FromValues(values url.Values) *Memory {
	indexed := make(map[Table]map[int]Row)
	for key, vals := range values {
		parts := strings.SplitN(key, ".", 3)
		if len(parts) != 3 {
			continue
		}
		table := Table(strings.ToLower(parts[0]))
		if !knownTable(table) {
			continue
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil || index < 0 {
			continue
		}
		value := ""
		if len(vals) > 0 {
			value = vals[0]
		}
		if indexed[table] == nil {
			indexed[table] = make(map[int]Row)
		}
		row := indexed[table][index]
		if row == nil {
			row = Row{}
			indexed[table][index] = row
		}
		row[strings.ToLower(parts[2])] = value
	}

	m := NewMemory()
	for _, table := range Tables {
		rows := indexed[table]
		indexes := make([]int, 0, len(rows))
		for index := range rows {
			indexes = append(indexes, index)
		}
		sort.Ints(indexes)
		ordered := make([]Row, 0, len(indexes))
		for _, index := range indexes {
			ordered = append(ordered, rows[index])
		}
		m.tables[table] = ordered
	}
	return m
}

// IsRowKey reports whether a form key addresses a table row.
func IsRowKey(key string) bool {
	parts := strings.SplitN(key, ".", 3)
	return len(parts) == 3 && knownTable(Table(strings.ToLower(parts[0])))
}

func knownTable(table Table) bool {
	for _, known := range Tables {
		if table == known {
			return true
		}
	}
	return false
}
