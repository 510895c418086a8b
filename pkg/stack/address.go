package stack

import (
	"fmt"
	"net"

	"github.com/urmzd/upnpd/pkg/ssdp"
)

// AdvertiseAddr picks the IPv4 address peers should use to reach this host:
// the first IPv4 address of ifname, or the source address the kernel would
// use towards the SSDP group when ifname is empty.
func AdvertiseAddr(ifname string) (string, error) {
	if ifname != "" {
		ifi, err := net.InterfaceByName(ifname)
		if err != nil {
			return "", fmt.Errorf("interface %s: %w", ifname, err)
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			return "", fmt.Errorf("interface %s addresses: %w", ifname, err)
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("interface %s has no IPv4 address", ifname)
	}

	// Connecting a UDP socket sends nothing; it only resolves the route.
	conn, err := net.Dial("udp4", ssdp.MulticastAddr)
	if err != nil {
		return "", fmt.Errorf("resolve outbound address: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
