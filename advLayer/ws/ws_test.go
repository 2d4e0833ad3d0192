package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, l := range []int{0, 1, 125, 126, 65535, 65536} {
		payload := make([]byte, l)
		rand.Read(payload)
		orig := append([]byte(nil), payload...)

		for _, masked := range []bool{true, false} {
			var buf bytes.Buffer
			if err := writeFrame(&buf, ws.OpBinary, payload, masked); err != nil {
				t.Log(err)
				t.FailNow()
			}

			// 帧头长度 2, 4, 10 字节, masked 时另加 4 字节
			hl := 2
			if l > 65535 {
				hl = 10
			} else if l > 125 {
				hl = 4
			}
			if masked {
				hl += 4
			}
			if buf.Len() != hl+l {
				t.Log(l, masked, buf.Len())
				t.Fail()
			}

			h, got, err := readFrame(&buf)
			if err != nil || h.OpCode != ws.OpBinary || h.Masked != masked || !bytes.Equal(got, orig) {
				t.Log(l, masked, err)
				t.Fail()
			}
			if !bytes.Equal(payload, orig) {
				t.Log("payload modified by masking")
				t.Fail()
			}
		}
	}
}

func TestReadFrameErrors(t *testing.T) {
	_, _, err := readFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Log(err)
		t.Fail()
	}

	var buf bytes.Buffer
	writeFrame(&buf, ws.OpBinary, []byte("hello"), false)
	_, _, err = readFrame(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	if !errors.Is(err, utils.ErrTransport) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Log(err)
		t.Fail()
	}
}

// 一个简单的 websocket 服务端, 每个连接执行 handle
func startServer(t *testing.T, handle func(c net.Conn)) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			c, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				if _, err := ws.Upgrade(c); err != nil {
					return
				}
				handle(c)
			}()
		}
	}()
	return listener.Addr().(*net.TCPAddr).Port
}

func echo(c net.Conn) {
	for {
		msg, op, err := wsutil.ReadClientData(c)
		if err != nil {
			return
		}
		if err = wsutil.WriteServerMessage(c, op, msg); err != nil {
			return
		}
	}
}

func newTestConnector(port int) *Connector {
	inner := proxy.NewWrappedConnector(proxy.NewTCPConnector("tcp", nil), "127.0.0.1", port)
	return NewConnector("ws", inner, "", "/path")
}

func TestConnectEcho(t *testing.T) {
	port := startServer(t, echo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := newTestConnector(port).Connect(ctx, "ignored.com", 1, []byte("first"))
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer s.Close()

	buf := make([]byte, 3)
	if _, err := io.ReadFull(s, buf); err != nil || string(buf) != "fir" {
		t.Log(string(buf), err)
		t.FailNow()
	}
	// 没读完的部分在 pending 中
	if string(s.ReadBuffered()) != "st" {
		t.Fail()
	}

	big := bytes.Repeat([]byte("x"), 70000)
	s.Write(big)
	got := make([]byte, len(big))
	if _, err := io.ReadFull(s, got); err != nil || !bytes.Equal(got, big) {
		t.Log(err)
		t.Fail()
	}
}

func TestPingAndClose(t *testing.T) {
	pong := make(chan string, 1)
	port := startServer(t, func(c net.Conn) {
		ws.WriteFrame(c, ws.NewPingFrame([]byte("hi")))

		f, err := ws.ReadFrame(c)
		if err != nil {
			return
		}
		if f.Header.Masked {
			ws.Cipher(f.Payload, f.Header.Mask, 0)
		}
		if f.Header.OpCode == ws.OpPong {
			pong <- string(f.Payload)
		}
		ws.WriteFrame(c, ws.NewPongFrame(nil))
		ws.WriteFrame(c, ws.NewBinaryFrame([]byte("data")))
		ws.WriteFrame(c, ws.NewCloseFrame(nil))
	})

	s, err := newTestConnector(port).Connect(context.Background(), "", 0, nil)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer s.Close()

	buf := make([]byte, 10)
	n, err := s.Read(buf)
	if err != nil || string(buf[:n]) != "data" {
		t.Log(string(buf[:n]), err)
		t.Fail()
	}
	if p := <-pong; p != "hi" {
		t.Log(p)
		t.Fail()
	}
	if _, err = s.Read(buf); err != io.EOF {
		t.Log(err)
		t.Fail()
	}
}

func TestBadOpcode(t *testing.T) {
	port := startServer(t, func(c net.Conn) {
		ws.WriteHeader(c, ws.Header{Fin: true, OpCode: ws.OpCode(0x3)})
		time.Sleep(100 * time.Millisecond)
	})

	s, err := newTestConnector(port).Connect(context.Background(), "", 0, nil)
	if err != nil {
		t.FailNow()
	}
	defer s.Close()
	_, err = s.Read(make([]byte, 10))
	if !errors.Is(err, utils.ErrProtocol) {
		t.Log(err)
		t.Fail()
	}
}

func TestHandshakeRejected(t *testing.T) {
	listener, _ := net.Listen("tcp", "127.0.0.1:0")
	defer listener.Close()
	go func() {
		c, err := listener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		c.Read(make([]byte, 4096))
		c.Write([]byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"))
	}()

	_, err := newTestConnector(listener.Addr().(*net.TCPAddr).Port).Connect(context.Background(), "", 0, nil)
	if !errors.Is(err, utils.ErrProtocol) {
		t.Log(err)
		t.Fail()
	}
}
