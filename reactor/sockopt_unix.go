//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly
// +build linux darwin netbsd freebsd openbsd dragonfly

package reactor

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// dialNonblocking creates a non-blocking TCP socket and begins an
// asynchronous connect to host:port. The returned bool reports whether
// the connect completed synchronously (rare, but possible for local
// addresses); if false the fd must be watched for writability.
func dialNonblocking(host string, port uint16) (fd int, connected bool, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, false, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, false, err
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		unix.Close(fd)
		return -1, false, &net.AddrError{Err: "invalid IPv4 address", Addr: host}
	}
	var addr unix.SockaddrInet4
	copy(addr.Addr[:], ip)
	addr.Port = int(port)

	err = unix.Connect(fd, &addr)
	switch err {
	case nil:
		return fd, true, nil
	case unix.EINPROGRESS:
		return fd, false, nil
	default:
		unix.Close(fd)
		return -1, false, err
	}
}

// listenNonblocking creates a non-blocking, SO_REUSEADDR listening TCP
// socket bound to host:port with a backlog of 5 (spec.md §4.4).
func listenNonblocking(host string, port uint16) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}

	ip := net.ParseIP(host).To4()
	if ip == nil {
		unix.Close(fd)
		return -1, &net.AddrError{Err: "invalid IPv4 address", Addr: host}
	}
	var addr unix.SockaddrInet4
	copy(addr.Addr[:], ip)
	addr.Port = int(port)

	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 5); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// acceptNonblocking accepts a single pending connection on a listening
// fd and marks the child non-blocking. It returns (-1, nil) when no
// connection is currently pending.
func acceptNonblocking(listenFD int) (fd int, err error) {
	fd, _, err = unix.Accept(listenFD)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, nil
		}
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// socketError fetches and clears SO_ERROR, the standard way to learn
// whether an asynchronous connect succeeded once the fd is writable.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

// rawRead performs one non-blocking read(2). A zero-byte, nil-error
// result means EOF, matching the source's read()==0 handling.
func rawRead(fd int, buf []byte) (n int, err error) {
	for {
		n, err = unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// rawWrite performs one non-blocking write(2); partial writes are
// returned as-is (spec.md §7: best-effort, no retry).
func rawWrite(fd int, buf []byte) (n int, err error) {
	for {
		n, err = unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func closeFD(fd int) {
	unix.Close(fd)
}

// wouldBlock reports whether err is the non-blocking-I/O "try again"
// signal, as opposed to a real error.
func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
