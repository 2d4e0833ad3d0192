package httpLayer

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/e1732a364fed/forwardproxy/utils"
)

func TestReadHead(t *testing.T) {
	const req = "GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\nbody"

	// OneByteReader 使终止符跨越多次读取
	head, rest, err := ReadHead(iotest.OneByteReader(strings.NewReader(req)))
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if string(head) != "GET http://example.com/ HTTP/1.1\r\nHost: example.com" {
		t.Log(string(head))
		t.Fail()
	}
	if len(rest) != 0 {
		t.Log("one byte reader should leave nothing", string(rest))
		t.Fail()
	}

	head, rest, err = ReadHead(strings.NewReader(req))
	if err != nil || string(rest) != "body" || !bytes.HasSuffix(head, []byte("example.com")) {
		t.Log(string(head), string(rest), err)
		t.Fail()
	}
}

func TestReadHeadErrors(t *testing.T) {
	_, _, err := ReadHead(strings.NewReader("GET / HTTP/1.1\r\nHost: a"))
	if !errors.Is(err, utils.ErrProtocol) {
		t.Log(err)
		t.Fail()
	}

	_, _, err = ReadHead(strings.NewReader(""))
	if !errors.Is(err, utils.ErrTransport) || !errors.Is(err, io.EOF) {
		t.Log(err)
		t.Fail()
	}

	_, _, err = ReadHead(strings.NewReader("GET / HTTP/1.1\r\n" + strings.Repeat("X-A: b\r\n", MaxHeadLen/4)))
	if !errors.Is(err, utils.ErrProtocol) {
		t.Log(err)
		t.Fail()
	}
}

func TestParseRequest(t *testing.T) {
	cases := []struct {
		head    string
		method  string
		version string
		host    string
		port    int
	}{
		{"CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443", "CONNECT", "HTTP/1.1", "example.com", 443},
		{"GET http://example.com/a HTTP/1.0\r\nUser-Agent: x\r\nHost: example.com", "GET", "HTTP/1.0", "example.com", 80},
		{"CONNECT [::1]:8080 HTTP/1.1\r\nHost: [::1]:8080\r\nProxy-Connection: keep-alive", "CONNECT", "HTTP/1.1", "::1", 8080},
	}
	for _, c := range cases {
		rh, err := ParseRequest([]byte(c.head))
		if err != nil {
			t.Log(c.head, err)
			t.Fail()
			continue
		}
		if rh.Method != c.method || rh.Version != c.version || rh.Host != c.host || rh.Port != c.port {
			t.Log(c.head, rh)
			t.Fail()
		}
	}

	for _, bad := range []string{
		"hello",
		"GET / HTTP/1.1\r\nUser-Agent: x",
		"GET / HTTP/1.1\r\nHost: a.com:99999",
	} {
		if _, err := ParseRequest([]byte(bad)); !errors.Is(err, utils.ErrProtocol) {
			t.Log(bad, err)
			t.Fail()
		}
	}
}

func TestStripProxyHeaders(t *testing.T) {
	head := "GET http://a.com/ HTTP/1.1\r\nHost: a.com\r\nProxy-Connection: keep-alive\r\nAccept: */*\r\nProxy-Authorization: Basic eA=="
	got := string(StripProxyHeaders([]byte(head)))
	if got != "GET http://a.com/ HTTP/1.1\r\nHost: a.com\r\nAccept: */*" {
		t.Log(got)
		t.Fail()
	}
}

func TestConnectRequest(t *testing.T) {
	if s := string(ConnectRequest("::1", 443)); s != "CONNECT [::1]:443 HTTP/1.1\r\nHost: [::1]:443\r\n\r\n" {
		t.Log(s)
		t.Fail()
	}
	if CheckConnectResponse([]byte("HTTP/1.1 200 Connection established")) != nil {
		t.Fail()
	}
	if !errors.Is(CheckConnectResponse([]byte("HTTP/1.1 403 Forbidden")), utils.ErrProtocol) {
		t.Fail()
	}
}
