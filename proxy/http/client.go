package http

import (
	"context"
	"net/url"
	"strings"

	"github.com/e1732a364fed/forwardproxy/advLayer/ws"
	"github.com/e1732a364fed/forwardproxy/httpLayer"
	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

func init() {
	proxy.RegisterConnector("http", newFromURL)
	proxy.RegisterConnector("https", newFromURL)
	proxy.RegisterConnector("ws", newFromURL)
	proxy.RegisterConnector("wss", newFromURL)
}

// http://host:port, https://host:port?sni=..&insecure=1&fingerprint=chrome,
// ws://host:port/path, wss://host:port/path?sni=..
func newFromURL(name string, u *url.URL) (proxy.Connector, error) {
	scheme := strings.ToLower(u.Scheme)
	useTLS := scheme == "https" || scheme == "wss"

	var inner proxy.Connector = proxy.PeerTCPConnector(name, u, useTLS, "sni")

	if strings.HasPrefix(scheme, "ws") {
		inner = ws.NewConnector(name, inner, u.Host, u.Path)
	}
	return NewConnector(name, inner), nil
}

// Connector 通过 上游的 http代理 建立隧道. Inner 须已经指向上游 (一般是 proxy.WrappedConnector).
type Connector struct {
	proxy.Base

	Inner proxy.Connector
}

func NewConnector(name string, inner proxy.Connector) *Connector {
	c := &Connector{Inner: inner}
	c.InitBase(name)
	return c
}

func (c *Connector) Connect(ctx context.Context, addr string, port int, leftover []byte) (netLayer.Stream, error) {
	s, err := c.Inner.Connect(ctx, addr, port, httpLayer.ConnectRequest(addr, port))
	if err != nil {
		return nil, err
	}

	head, rest, err := httpLayer.ReadHead(s)
	if err == nil {
		err = httpLayer.CheckConnectResponse(head)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Unread(rest)

	if ce := utils.CanLogDebug("CONNECT tunnel established"); ce != nil {
		ce.Write(zap.String("connector", c.Name()), zap.String("target", utils.JoinHostPort(addr, port)))
	}

	if len(leftover) > 0 {
		if _, err := s.Write(leftover); err != nil {
			s.Close()
			return nil, utils.TransportErr("write leftover", err)
		}
	}
	return s, nil
}
