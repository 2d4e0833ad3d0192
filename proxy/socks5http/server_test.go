package socks5http

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/e1732a364fed/forwardproxy/netLayer"
)

func accept(t *testing.T, input []byte) (addr string, port int, leftover []byte, written []byte, err error) {
	listener, e := net.Listen("tcp", "127.0.0.1:0")
	if e != nil {
		t.FailNow()
	}
	defer listener.Close()

	got := make(chan []byte, 1)
	go func() {
		c, e := net.Dial("tcp", listener.Addr().String())
		if e != nil {
			got <- nil
			return
		}
		defer c.Close()
		c.Write(input)
		c.(*net.TCPConn).CloseWrite()
		bs, _ := io.ReadAll(c)
		got <- bs
	}()

	c, e := listener.Accept()
	if e != nil {
		t.FailNow()
	}
	s := netLayer.NewTCPStream(c)
	addr, port, leftover, err = Server{}.Accept(s)
	s.Close()
	written = <-got
	return
}

func TestSocks5(t *testing.T) {
	addr, port, _, written, err := accept(t, []byte{5, 1, 0, 5, 1, 0, 1, 127, 0, 0, 1, 0, 80})
	if err != nil || addr != "127.0.0.1" || port != 80 {
		t.Log(addr, port, err)
		t.Fail()
	}
	if !bytes.Equal(written, []byte{5, 0, 5, 0, 0, 1, 0, 0, 0, 0, 0, 0}) {
		t.Log(written)
		t.Fail()
	}
}

func TestHttp(t *testing.T) {
	addr, port, _, written, err := accept(t, []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
	if err != nil || addr != "example.com" || port != 443 {
		t.Log(addr, port, err)
		t.Fail()
	}
	if string(written) != "HTTP/1.1 200 Connection Established\r\nConnection close\r\n\r\n" {
		t.Logf("%q", written)
		t.Fail()
	}

	addr, port, leftover, _, err := accept(t, []byte("GET http://example.com:8080/ HTTP/1.1\r\nHost: example.com:8080\r\n\r\n"))
	if err != nil || addr != "example.com" || port != 8080 || string(leftover) != "GET http://example.com:8080/ HTTP/1.1\r\nHost: example.com:8080\r\n\r\n" {
		t.Log(addr, port, string(leftover), err)
		t.Fail()
	}
}
