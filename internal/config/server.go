package config

import (
	"fmt"
	"net"
)

// wantPrivate maps dht.mode to the address class a node should advertise.
func wantPrivate(mode string) bool {
	return mode != "public"
}

// advertisableIP picks the first IPv4 address on the host that matches
// mode: RFC-1918 space for "private", globally routable for "public".
// Loopback and IPv6-only interfaces are skipped.
func advertisableIP(mode string) (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if ip.IsPrivate() == wantPrivate(mode) {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("no %s IPv4 address found on any interface", mode)
}

// ResolveHost returns the host this node advertises to peers: the
// configured Node.Host if set (checked against DHT.Mode), otherwise an
// address auto-selected from the local interfaces.
func (cfg *Config) ResolveHost() (string, error) {
	if cfg.Node.Host == "" {
		ip, err := advertisableIP(cfg.DHT.Mode)
		if err != nil {
			return "", err
		}
		return ip.String(), nil
	}
	ip := net.ParseIP(cfg.Node.Host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", cfg.Node.Host)
	}
	if ip.IsPrivate() != wantPrivate(cfg.DHT.Mode) {
		return "", fmt.Errorf("host %s does not match dht.mode=%s", cfg.Node.Host, cfg.DHT.Mode)
	}
	return cfg.Node.Host, nil
}

// Listen opens the TCP listener the HTTP server will serve on, bound to
// Node.Bind (defaulting to all interfaces) and Node.Port.
func (cfg *Config) Listen() (net.Listener, error) {
	bind := cfg.Node.Bind
	if bind == "" {
		bind = "0.0.0.0"
	}
	return net.Listen("tcp", fmt.Sprintf("%s:%d", bind, cfg.Node.Port))
}
