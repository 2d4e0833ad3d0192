package ws

import (
	"context"
	"net/url"
	"time"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/gobwas/ws"
	"go.uber.org/zap"
)

// Connector 在内层 Connector 建立的连接上进行 websocket握手, 返回一个 Conn.
//
// 注意，Connector 只是在tcp/tls 的基础上包了一层websocket而已，并不负责告诉对端 真实的目标地址;
// 目标地址交给 Inner 决定 (一般是一个 proxy.WrappedConnector), 需要代理的话 应在外面再包一层 http CONNECT 或 vmess.
type Connector struct {
	proxy.Base

	Inner proxy.Connector

	// 为空时使用 Connect 时的地址
	Host string
	Path string

	// 客户端发出的帧必须 masked, 只在测试中关闭.
	Masked bool
}

func NewConnector(name string, inner proxy.Connector, host, path string) *Connector {
	if path == "" {
		path = "/"
	}
	c := &Connector{Inner: inner, Host: host, Path: path, Masked: true}
	c.InitBase(name)
	return c
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

func (c *Connector) Connect(ctx context.Context, addr string, port int, leftover []byte) (netLayer.Stream, error) {
	s, err := c.Inner.Connect(ctx, addr, port, nil)
	if err != nil {
		return nil, err
	}

	host := c.Host
	if host == "" {
		host = utils.JoinHostPort(addr, port)
	}
	u := &url.URL{Scheme: "ws", Host: host, Path: c.Path}

	//gobwas/ws 的握手需要调用者自己设置超时
	if dl, ok := ctx.Deadline(); ok {
		if d, ok := s.(deadliner); ok {
			d.SetDeadline(dl)
			defer d.SetDeadline(time.Time{})
		}
	}

	br, _, err := ws.Dialer{}.Upgrade(s, u)
	if err != nil {
		s.Close()
		if _, isStatusErr := err.(ws.StatusError); isStatusErr || err == ws.ErrHandshakeBadUpgrade || err == ws.ErrHandshakeBadConnection || err == ws.ErrHandshakeBadSecAccept {
			return nil, utils.ProtocolErr("ws handshake failed", err.Error())
		}
		return nil, utils.TransportErr("ws handshake", err)
	}

	// 服务器可能紧接着握手的回应发送数据, 这些数据已经被读进了 br
	if br != nil {
		if n := br.Buffered(); n > 0 {
			bs, _ := br.Peek(n)
			s.Unread(bs)
		}
		ws.PutReader(br)
	}

	if ce := utils.CanLogDebug("ws handshake ok"); ce != nil {
		ce.Write(zap.String("connector", c.Name()), zap.String("url", u.String()))
	}

	conn := NewConn(s, c.Masked)
	if len(leftover) > 0 {
		if _, err := conn.Write(leftover); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}
