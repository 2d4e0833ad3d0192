package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/e1732a364fed/forwardproxy/utils"
)

func init() {
	RegisterConnector("testtcp", func(name string, u *url.URL) (Connector, error) {
		w := PeerTCPConnector(name, u, false, "")
		w.InitBase(name)
		return w, nil
	})
}

func TestConnectorFromURL(t *testing.T) {
	c, err := ConnectorFromURL("testtcp://127.0.0.1:8080?weight=30#mypeer")
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if c.Name() != "mypeer" || c.Weight() != 30 {
		t.Log(c.Name(), c.Weight())
		t.Fail()
	}
	w := c.(*WrappedConnector)
	if w.Addr != "127.0.0.1" || w.Port != 8080 {
		t.Fail()
	}

	c, err = ConnectorFromURL("TESTTCP://[::1]:443")
	if err != nil || c.Name() != "testtcp://[::1]:443" {
		t.Log(c, err)
		t.Fail()
	}
}

func TestConnectorFromURLErrors(t *testing.T) {
	for _, s := range []string{
		"unknown://a.com:80",
		"testtcp://a.com",
		"testtcp://a.com:0",
		"testtcp://a.com:70000",
		"testtcp://bad_host!:80",
		"testtcp://a.com:80?weight=abc",
		"::",
	} {
		_, err := ConnectorFromURL(s)
		if !errors.Is(err, utils.ErrConfig) {
			t.Log(s, err)
			t.Fail()
		}
	}

	cs := ConnectorsFromURLs([]string{"unknown://a.com:80", "testtcp://a.com:80"})
	if len(cs) != 1 {
		t.Fail()
	}
}

func TestTLSConfFromURL(t *testing.T) {
	u, _ := url.Parse("https://1.2.3.4:443?sni=example.com&insecure=1&fingerprint=firefox&alpn=h2,http/1.1")
	conf := TLSConfFromURL(u, "sni")
	if conf.ServerName != "example.com" || !conf.Insecure || conf.Fingerprint != "firefox" || len(conf.AlpnList) != 2 {
		t.Log(conf)
		t.Fail()
	}
	u, _ = url.Parse("https://example.org:443")
	if conf = TLSConfFromURL(u, "sni"); conf.ServerName != "example.org" || conf.Insecure {
		t.Fail()
	}
}

func TestTCPConnectorLeftover(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	defer listener.Close()

	got := make(chan string, 1)
	go func() {
		c, err := listener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		bs, _ := io.ReadAll(c)
		got <- string(bs)
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	s, err := NewTCPConnector("t", nil).Connect(context.Background(), "127.0.0.1", port, []byte("hello"))
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	s.Write([]byte(" world"))
	s.CloseWrite()
	if r := <-got; r != "hello world" {
		t.Log(r)
		t.Fail()
	}
	s.Close()
}

func TestTCPConnectorRefused(t *testing.T) {
	listener, _ := net.Listen("tcp", "127.0.0.1:0")
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err := NewTCPConnector("t", nil).Connect(context.Background(), "127.0.0.1", port, nil)
	if !errors.Is(err, utils.ErrTransport) {
		t.Log(err)
		t.Fail()
	}
}
