package socks5

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
)

// 客户端写入 input 后半关闭, 在服务端运行 Accept, 返回 Accept 写回的所有数据.
func runAccept(t *testing.T, input []byte) (addr string, port int, leftover []byte, written []byte, err error) {
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

func TestAcceptIPv4(t *testing.T) {
	input := []byte{5, 1, 0, 5, 1, 0, 1, 1, 2, 3, 4, 0x01, 0xbb}
	addr, port, leftover, written, err := runAccept(t, input)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if addr != "1.2.3.4" || port != 443 || len(leftover) != 0 {
		t.Log(addr, port, leftover)
		t.Fail()
	}
	if !bytes.Equal(written, []byte{5, 0, 5, 0, 0, 1, 0, 0, 0, 0, 0, 0}) {
		t.Log(written)
		t.Fail()
	}
}

func TestAcceptDomainAndIPv6(t *testing.T) {
	input := []byte{5, 2, 2, 0, 5, 1, 0, 3, 11}
	input = append(input, "example.com"...)
	input = append(input, 0, 80)
	addr, port, _, _, err := runAccept(t, input)
	if err != nil || addr != "example.com" || port != 80 {
		t.Log(addr, port, err)
		t.Fail()
	}

	input = []byte{5, 1, 0, 5, 1, 0, 4}
	input = append(input, net.ParseIP("2001:db8::1")...)
	input = append(input, 0x1f, 0x90)
	addr, port, _, _, err = runAccept(t, input)
	if err != nil || addr != "2001:db8::1" || port != 8080 {
		t.Log(addr, port, err)
		t.Fail()
	}
}

func TestAcceptNoAuthMethod(t *testing.T) {
	_, _, _, written, err := runAccept(t, []byte{5, 1, 2})
	if !errors.Is(err, utils.ErrProtocol) {
		t.Fail()
	}
	if !bytes.Equal(written, []byte{5, 0xff}) {
		t.Log(written)
		t.Fail()
	}
}

func TestAcceptErrors(t *testing.T) {
	cases := [][]byte{
		{4, 1, 0},
		{5, 1, 0, 4, 1, 0, 1},
		{5, 1, 0, 5, 2, 0, 1},
		{5, 1, 0, 5, 1, 1, 1},
		{5, 1, 0, 5, 1, 0, 9},
		{5, 1, 0, 5, 1, 0, 3, 0},
	}
	for _, c := range cases {
		_, _, _, _, err := runAccept(t, c)
		if !errors.Is(err, utils.ErrProtocol) {
			t.Log(c, err)
			t.Fail()
		}
	}

	// 数据不完整
	_, _, _, _, err := runAccept(t, []byte{5, 1, 0, 5, 1, 0, 1, 1, 2})
	if !errors.Is(err, utils.ErrTransport) {
		t.Log(err)
		t.Fail()
	}
}
