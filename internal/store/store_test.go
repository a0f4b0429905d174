package store

import (
	"errors"
	"reflect"
	"testing"

	"amneziawg-webui/internal/tunnel"
)

func TestGetSetScalarPaths(t *testing.T) {
	s := New()
	if err := s.Set("interface.listen_port", "51821"); err != nil {
		t.Fatalf("Set listen_port: %v", err)
	}
	if err := s.Set("interface.mtu", 1420); err != nil {
		t.Fatalf("Set mtu: %v", err)
	}
	if err := s.Set("obfs.enabled", "on"); err != nil {
		t.Fatalf("Set obfs.enabled: %v", err)
	}

	port, err := s.Get("interface.listen_port")
	if err != nil {
		t.Fatalf("Get listen_port: %v", err)
	}
	if port != uint16(51821) {
		t.Fatalf("expected port 51821, got %#v", port)
	}
	mtu, _ := s.Get("interface.mtu")
	if mtu != "1420" {
		t.Fatalf("expected mtu \"1420\", got %#v", mtu)
	}
	enabled, _ := s.Get("obfs.enabled")
	if enabled != true {
		t.Fatalf("expected obfs enabled, got %#v", enabled)
	}
	if !s.Dirty() {
		t.Fatalf("expected store to be dirty after Set")
	}
}

func TestSetRejectsUnknownPathAndBadValue(t *testing.T) {
	s := New()
	if err := s.Set("interface.bogus", "x"); !errors.Is(err, ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
	if err := s.Set("interface.listen_port", "70000"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for out of range port, got %v", err)
	}
	if err := s.Set("transport.handshake_timeout", -1); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for negative timeout, got %v", err)
	}
	if err := s.Set("peers", "nope"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for peers, got %v", err)
	}
}

func TestSetNumbersAreDecimal(t *testing.T) {
	cases := []struct {
		path    string
		value   any
		want    any
		wantErr bool
	}{
		{path: "transport.handshake_timeout", value: "010", want: uint(10)},
		{path: "obfs.padding", value: "0100", want: uint(100)},
		{path: "interface.listen_port", value: "08080", want: uint16(8080)},
		{path: "obfs.padding", value: "0x20", want: uint(32)},
		{path: "obfs.padding", value: " 025 ", want: uint(25)},
		{path: "obfs.padding", value: "1_000", wantErr: true},
		{path: "obfs.padding", value: "0b11", wantErr: true},
		{path: "obfs.padding", value: "0o17", wantErr: true},
	}
	for _, tc := range cases {
		s := New()
		err := s.Set(tc.path, tc.value)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidValue) {
				t.Fatalf("Set(%s, %q): expected ErrInvalidValue, got %v", tc.path, tc.value, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Set(%s, %q): %v", tc.path, tc.value, err)
		}
		got, _ := s.Get(tc.path)
		if got != tc.want {
			t.Fatalf("Set(%s, %q) stored %#v, want %#v", tc.path, tc.value, got, tc.want)
		}
	}
}

func TestGetTablesReturnsCopies(t *testing.T) {
	s := New()
	if err := s.Set("peers", []tunnel.Peer{{Name: "vps1"}}); err != nil {
		t.Fatalf("Set peers: %v", err)
	}
	value, err := s.Get("peers")
	if err != nil {
		t.Fatalf("Get peers: %v", err)
	}
	peers := value.([]tunnel.Peer)
	peers[0].Name = "changed"
	if s.Snapshot().Peers[0].Name != "vps1" {
		t.Fatalf("Get leaked live peer storage")
	}
}

func TestMergeLoadedKeepsAbsentSections(t *testing.T) {
	s := New()
	_ = s.Set("advanced.extra", "Jc = 4")

	doc, err := tunnel.DecodeDocument([]byte(`{"interface":{"enabled":true,"name":"awg1","mtu":1380}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s.MergeLoaded(doc)

	cfg := s.Snapshot()
	if !cfg.Interface.Enabled || cfg.Interface.Name != "awg1" || cfg.Interface.MTU != "1380" {
		t.Fatalf("interface not merged: %+v", cfg.Interface)
	}
	if cfg.Interface.ListenPort != 51820 {
		t.Fatalf("missing field inside present section should default, got %d", cfg.Interface.ListenPort)
	}
	if cfg.Advanced.Extra != "Jc = 4" {
		t.Fatalf("absent section should keep prior value, got %q", cfg.Advanced.Extra)
	}
	if s.Dirty() {
		t.Fatalf("expected clean store after load")
	}
}

func TestMergeLoadedIgnoresMalformedInput(t *testing.T) {
	s := New()
	doc, err := tunnel.DecodeDocument([]byte(`{
		"interface": {"listen_port": "not-a-port", "name": {"x": 1}},
		"peers": "oops",
		"obfs": [1, 2],
		"transport": {"handshake_timeout": -3, "proto": "TCP"},
		"policy": {"routes": [{"table": "wg", "dest": "10.0.0.0/8"}, 7], "marks": {"bad": true}}
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s.MergeLoaded(doc)

	cfg := s.Snapshot()
	def := tunnel.Defaults()
	if cfg.Interface.ListenPort != def.Interface.ListenPort || cfg.Interface.Name != def.Interface.Name {
		t.Fatalf("invalid interface fields should keep defaults: %+v", cfg.Interface)
	}
	if len(cfg.Peers) != 0 {
		t.Fatalf("non-array peers should be ignored, got %+v", cfg.Peers)
	}
	if cfg.Obfs != def.Obfs {
		t.Fatalf("non-object obfs should be ignored: %+v", cfg.Obfs)
	}
	if cfg.Transport.HandshakeTimeout != 5 || cfg.Transport.Proto != "TCP" {
		t.Fatalf("unexpected transport: %+v", cfg.Transport)
	}
	want := []tunnel.PolicyRoute{{Table: "wg", Dest: "10.0.0.0/8"}}
	if !reflect.DeepEqual(cfg.Policy.Routes, want) {
		t.Fatalf("unexpected routes: %+v", cfg.Policy.Routes)
	}
	if len(cfg.Policy.Marks) != 0 {
		t.Fatalf("expected no marks, got %+v", cfg.Policy.Marks)
	}
}

func TestMergeLoadedReplacesWholeDocument(t *testing.T) {
	want := tunnel.Defaults()
	want.Interface = tunnel.InterfaceConfig{Enabled: true, Name: "awg0", ListenPort: 51820, PrivateKey: "k", IPv4: "10.0.0.2/32", DNS: "1.1.1.1"}
	want.Peers = []tunnel.Peer{{Name: "vps1", AllowedIPs: "0.0.0.0/0", PublicKey: "pk", Endpoint: "1.2.3.4:51820", Keepalive: 25}}
	want.Obfs = tunnel.ObfuscationConfig{Enabled: true, Mode: tunnel.ModeNone}
	want.Policy.Routes = []tunnel.PolicyRoute{{Table: "wan", Dest: "10.1.0.0/24"}}
	want.Policy.Marks = []tunnel.MarkRule{{FwMark: 100, Ports: "1000-2000"}}

	s := New()
	s.MergeLoaded(want.ToDocument())
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("merge mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestPathsCoversAllScalarSections(t *testing.T) {
	paths := Paths()
	if len(paths) != len(fields) {
		t.Fatalf("expected %d paths, got %d", len(fields), len(paths))
	}
	for _, name := range scalarSections {
		if len(sectionFields(name)) == 0 {
			t.Fatalf("section %s has no fields", name)
		}
	}
}
