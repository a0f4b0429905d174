package util

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"
)

const defaultListenPort = "8091"

// InterfaceInfo summarises a network interface and its addresses.
type InterfaceInfo struct {
	Name      string   `json:"name"`
	Addresses []string `json:"addresses"`
}

// InterfacesWithAddrs returns all interfaces along with their addresses.
func InterfacesWithAddrs() ([]InterfaceInfo, error) {
	list, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	infos := make([]InterfaceInfo, 0, len(list))
	for _, iface := range list {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		addresses := make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addresses = append(addresses, addr.String())
		}
		infos = append(infos, InterfaceInfo{Name: iface.Name, Addresses: addresses})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// InterfaceIPv4 returns the first IPv4 address bound to an interface.
func InterfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	addresses := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addresses = append(addresses, addr.String())
	}
	return firstIPv4(addresses)
}

func firstIPv4(addresses []string) (string, error) {
	for _, raw := range addresses {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if addr := prefix.Addr().Unmap(); addr.Is4() {
			return addr.String(), nil
		}
	}
	return "", errors.New("no IPv4 address found")
}

// ResolveListenAddress binds defaultAddr's port to the IPv4 address of
// listenInterface. When the interface cannot be resolved the default host is
// kept and the lookup error is returned alongside the usable address.
func ResolveListenAddress(defaultAddr, listenInterface string) (string, error) {
	return resolveListenAddress(defaultAddr, listenInterface, InterfaceIPv4)
}

func resolveListenAddress(defaultAddr, listenInterface string, lookup func(string) (string, error)) (string, error) {
	host, port, err := net.SplitHostPort(defaultAddr)
	if err != nil {
		host = ""
		port = strings.TrimPrefix(defaultAddr, ":")
	}
	if port == "" {
		port = defaultListenPort
	}
	fallback := net.JoinHostPort(host, port)

	name := strings.TrimSpace(listenInterface)
	if name == "" {
		return fallback, nil
	}
	ip, err := lookup(name)
	if err != nil || ip == "" {
		if err == nil {
			err = errors.New("no address")
		}
		return fallback, fmt.Errorf("resolve listen interface %s: %w", name, err)
	}
	return net.JoinHostPort(ip, port), nil
}
