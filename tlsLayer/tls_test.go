package tlsLayer

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"
)

func testHandshake(t *testing.T, conf Conf) {
	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: GenerateRandomTLSCert()})
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer listener.Close()

	go func() {
		c, err := listener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c)
	}()

	underlay, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer underlay.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tc, err := NewClient(conf).Handshake(ctx, underlay)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}

	tc.Write([]byte("hello"))
	buf := make([]byte, 5)
	if _, err := io.ReadFull(tc, buf); err != nil || string(buf) != "hello" {
		t.Log(string(buf), err)
		t.Fail()
	}

	if _, ok := tc.(interface{ CloseWrite() error }); !ok {
		t.Log("tls conn should support CloseWrite")
		t.Fail()
	}
}

func TestTls(t *testing.T) {
	testHandshake(t, Conf{ServerName: "localhost", Insecure: true})
}

func TestUTls(t *testing.T) {
	testHandshake(t, Conf{ServerName: "localhost", Insecure: true, Fingerprint: "chrome"})
}

func TestTlsVerifyFails(t *testing.T) {
	listener, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: GenerateRandomTLSCert()})
	if err != nil {
		t.FailNow()
	}
	defer listener.Close()
	go func() {
		c, err := listener.Accept()
		if err == nil {
			c.(*tls.Conn).Handshake()
			c.Close()
		}
	}()

	underlay, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.FailNow()
	}
	defer underlay.Close()

	_, err = NewClient(Conf{ServerName: "localhost"}).Handshake(context.Background(), underlay)
	if err == nil {
		t.Log("self signed cert should not be trusted")
		t.Fail()
	}
}

func TestParseFingerprint(t *testing.T) {
	if ParseFingerprint("Firefox").Client != "Firefox" {
		t.Fail()
	}
	if ParseFingerprint("whatever").Client != "Chrome" {
		t.Fail()
	}
}
