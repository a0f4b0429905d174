package collect

import (
	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/tunnel"
)

// PolicyCollector reads route and mark rows from a form adapter. It is the
// validation boundary for policy data: rejected rows are dropped silently.
type PolicyCollector struct {
	adapter form.Adapter
}

// NewPolicyCollector creates a PolicyCollector over adapter.
func NewPolicyCollector(adapter form.Adapter) *PolicyCollector {
	return &PolicyCollector{adapter: adapter}
}

// CollectRoutes returns routes with a non-empty destination, in row order.
func (c *PolicyCollector) CollectRoutes() []tunnel.PolicyRoute {
	rows := c.adapter.Rows(form.TableRoutes)
	routes := make([]tunnel.PolicyRoute, 0, len(rows))
	for _, row := range rows {
		route := tunnel.PolicyRoute{
			Table:   field(row, form.FieldTable),
			Dest:    field(row, form.FieldDest),
			Sources: field(row, form.FieldSources),
		}
		if route.Table == "" {
			route.Table = tunnel.TableWAN
		}
		if route.Dest == "" {
			continue
		}
		routes = append(routes, route)
	}
	return routes
}

// CollectMarks returns rules with fwmark > 0 and non-empty ports, in row order.
func (c *PolicyCollector) CollectMarks() []tunnel.MarkRule {
	rows := c.adapter.Rows(form.TableMarks)
	marks := make([]tunnel.MarkRule, 0, len(rows))
	for _, row := range rows {
		mark := tunnel.MarkRule{
			FwMark: uint32(parseUint(field(row, form.FieldFwMark), 32)),
			Ports:  field(row, form.FieldPorts),
		}
		if mark.FwMark == 0 || mark.Ports == "" {
			continue
		}
		marks = append(marks, mark)
	}
	return marks
}

// Collect returns both policy tables.
func (c *PolicyCollector) Collect() tunnel.Policy {
	return tunnel.Policy{
		Routes: c.CollectRoutes(),
		Marks:  c.CollectMarks(),
	}
}
