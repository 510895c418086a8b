//go:build !unix

package ssdp

import "syscall"

func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
