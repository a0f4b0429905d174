// Package form abstracts the dynamic, variable-length tables of the editor
// (peers, policy routes, mark rules) as ordered rows of named fields.
package form

import (
	"strconv"

	"amneziawg-webui/internal/tunnel"
)

// Table names a dynamic table.
type Table string

const (
	TablePeers  Table = "peers"
	TableRoutes Table = "routes"
	TableMarks  Table = "marks"
)

// Tables lists every dynamic table.
var Tables = []Table{TablePeers, TableRoutes, TableMarks}

// Peer row fields.
const (
	FieldName         = "name"
	FieldAllowedIPs   = "allowed_ips"
	FieldPublicKey    = "public_key"
	FieldPresharedKey = "preshared_key"
	FieldEndpoint     = "endpoint"
	FieldKeepalive    = "keepalive"
)

// Route and mark row fields.
const (
	FieldTable   = "table"
	FieldDest    = "dest"
	FieldSources = "sources"
	FieldFwMark  = "fwmark"
	FieldPorts   = "ports"
)

// Row is one table row: raw field values keyed by field name. A missing key
// reads as the empty string.
type Row map[string]string

// Adapter returns the current rows of a table in display order.
type Adapter interface {
	Rows(table Table) []Row
}

// Memory is an in-memory Adapter.
type Memory struct {
	tables map[Table][]Row
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{tables: make(map[Table][]Row)}
}

// Append adds a row to the end of table.
func (m *Memory) Append(table Table, row Row) {
	m.tables[table] = append(m.tables[table], copyRow(row))
}

// Replace sets all rows of table.
func (m *Memory) Replace(table Table, rows []Row) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyRow(row))
	}
	m.tables[table] = out
}

// Remove deletes the row at index, if present.
func (m *Memory) Remove(table Table, index int) {
	rows := m.tables[table]
	if index < 0 || index >= len(rows) {
		return
	}
	m.tables[table] = append(rows[:index:index], rows[index+1:]...)
}

// Rows implements Adapter. The returned rows are copies.
func (m *Memory) Rows(table Table) []Row {
	rows := m.tables[table]
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, copyRow(row))
	}
	return out
}

// FromConfig builds an adapter whose rows mirror cfg's peers and policy.
func FromConfig(cfg tunnel.Config) *Memory {
	m := NewMemory()
	m.tables[TablePeers] = []Row{}
	m.tables[TableRoutes] = []Row{}
	m.tables[TableMarks] = []Row{}
	for _, peer := range cfg.Peers {
		m.Append(TablePeers, Row{
			FieldName:         peer.Name,
			FieldAllowedIPs:   peer.AllowedIPs,
			FieldPublicKey:    peer.PublicKey,
			FieldPresharedKey: peer.PresharedKey,
			FieldEndpoint:     peer.Endpoint,
			FieldKeepalive:    strconv.FormatUint(uint64(peer.Keepalive), 10),
		})
	}
	for _, route := range cfg.Policy.Routes {
		m.Append(TableRoutes, Row{
			FieldTable:   route.Table,
			FieldDest:    route.Dest,
			FieldSources: route.Sources,
		})
	}
	for _, mark := range cfg.Policy.Marks {
		m.Append(TableMarks, Row{
			FieldFwMark: strconv.FormatUint(uint64(mark.FwMark), 10),
			FieldPorts:  mark.Ports,
		})
	}
	return m
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
