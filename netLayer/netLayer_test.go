package netLayer

import (
	"net"
	"testing"
)

// tcpPair 返回一对在本地回环上互相连接的 TCPStream.
func tcpPair(t *testing.T) (*TCPStream, *TCPStream) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer l.Close()

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			t.Log(err)
			close(ch)
			return
		}
		ch <- c
	}()

	c1, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	c2, ok := <-ch
	if !ok {
		t.FailNow()
	}
	return NewTCPStream(c1), NewTCPStream(c2)
}

func TestAddr(t *testing.T) {
	a, err := NewAddr("example.com:443", 80)
	if err != nil || a.Name != "example.com" || a.Port != 443 {
		t.Log(a, err)
		t.Fail()
	}
	a, err = NewAddr("example.com", 80)
	if err != nil || a.Port != 80 {
		t.Log(a, err)
		t.Fail()
	}
	a, err = NewAddr("[::1]:8080", 80)
	if err != nil || a.Name != "::1" || a.String() != "[::1]:8080" {
		t.Log(a, err)
		t.Fail()
	}
	if _, err = NewAddr("example.com:70000", 80); err == nil {
		t.Log("port out of range should fail")
		t.Fail()
	}
}
