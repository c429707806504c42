// Copyright (c) 2025 The Sockmux Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

// Package socket creates the raw non-blocking TCP descriptors the engine
// registers with its poller, and converts between net and unix address
// representations.
package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	errorx "github.com/sockmux/sockmux/pkg/errors"
)

// TCPSockaddr resolves a "host:port" address to the unix.Sockaddr, address
// family and net.TCPAddr it denotes.
func TCPSockaddr(addr string) (sa unix.Sockaddr, family int, tcpAddr *net.TCPAddr, err error) {
	tcpAddr, err = net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		err = errorx.ErrInvalidNetworkAddress
		return
	}

	switch {
	case tcpAddr.IP.To4() != nil:
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		copy(sa4.Addr[:], tcpAddr.IP.To4())
		sa, family = sa4, unix.AF_INET
	case tcpAddr.IP.To16() != nil:
		sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
		if tcpAddr.Zone != "" {
			var iface *net.Interface
			iface, err = net.InterfaceByName(tcpAddr.Zone)
			if err != nil {
				return
			}
			sa6.ZoneId = uint32(iface.Index)
		}
		sa, family = sa6, unix.AF_INET6
	case tcpAddr.IP == nil:
		// Wildcard listen address.
		sa, family = &unix.SockaddrInet4{Port: tcpAddr.Port}, unix.AF_INET
	default:
		err = errorx.ErrUnsupportedProtocol
	}
	return
}

// SockaddrToTCPAddr converts a unix.Sockaddr back to a net.TCPAddr. It
// returns nil for non-TCP sockaddr kinds.
func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte{}, sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		var zone string
		if sa.ZoneId != 0 {
			if iface, err := net.InterfaceByIndex(int(sa.ZoneId)); err == nil {
				zone = iface.Name
			}
		}
		return &net.TCPAddr{IP: append([]byte{}, sa.Addr[:]...), Port: sa.Port, Zone: zone}
	}
	return nil
}

func sysSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}

// TCPListen creates a non-blocking listening descriptor bound to addr with
// the given backlog.
func TCPListen(addr string, backlog int) (fd int, lnAddr *net.TCPAddr, err error) {
	sa, family, lnAddr, err := TCPSockaddr(addr)
	if err != nil {
		return -1, nil, err
	}
	if fd, err = sysSocket(family); err != nil {
		return -1, nil, err
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
			fd = -1
		}
	}()

	if err = os.NewSyscallError("setsockopt",
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)); err != nil {
		return
	}
	if err = os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err = os.NewSyscallError("listen", unix.Listen(fd, backlog)); err != nil {
		return
	}
	return fd, lnAddr, nil
}

// TCPConnect creates a non-blocking descriptor and starts a connect to addr.
// completed reports whether the connect finished synchronously; otherwise
// the caller waits for writability to learn the outcome.
func TCPConnect(addr string) (fd int, completed bool, raddr *net.TCPAddr, err error) {
	sa, family, raddr, err := TCPSockaddr(addr)
	if err != nil {
		return -1, false, nil, err
	}
	if fd, err = sysSocket(family); err != nil {
		return -1, false, nil, err
	}

	switch err = unix.Connect(fd, sa); err {
	case nil:
		completed = true
	case unix.EINPROGRESS:
		err = nil
	default:
		_ = unix.Close(fd)
		return -1, false, nil, os.NewSyscallError("connect", err)
	}
	return fd, completed, raddr, nil
}

// ConnectError reads and clears the pending socket error of a descriptor
// whose asynchronous connect has resolved.
func ConnectError(fd int) error {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return os.NewSyscallError("getsockopt", err)
	}
	if soErr != 0 {
		return os.NewSyscallError("connect", unix.Errno(soErr))
	}
	return nil
}
