package vmess

import (
	"context"
	"crypto/rand"
	"net/url"
	"strings"
	"time"

	"github.com/e1732a364fed/forwardproxy/advLayer/ws"
	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

func init() {
	proxy.RegisterConnector(Name, newFromURL)
}

// vmess://uuid@host:port?net=tcp|tls|ws|wss&tls_host=..&ws_path=..&ws_host=..
//
// tls_host 为 tls 的 server name, 默认为 host; ws_host 为 websocket 握手的 Host, 默认为 host:port.
func newFromURL(name string, u *url.URL) (proxy.Connector, error) {
	if u.User == nil {
		return nil, utils.ConfigErr("vmess url without uuid", u.Host)
	}
	q := u.Query()

	network := strings.ToLower(q.Get("net"))
	var useTLS, useWS bool
	switch network {
	case "", "tcp":
	case "tls":
		useTLS = true
	case "ws":
		useWS = true
	case "wss":
		useTLS, useWS = true, true
	default:
		return nil, utils.ConfigErr("unsupported vmess net", network)
	}

	var inner proxy.Connector = proxy.PeerTCPConnector(name, u, useTLS, "tls_host")
	if useWS {
		wsHost := q.Get("ws_host")
		if wsHost == "" {
			wsHost = u.Host
		}
		inner = ws.NewConnector(name, inner, wsHost, q.Get("ws_path"))
	}

	return NewConnector(name, inner, u.User.Username())
}

// Connector 在 Inner 建立的连接上使用 vmess 协议. Inner 须已经指向 vmess 服务器.
type Connector struct {
	proxy.Base

	Inner proxy.Connector

	uuid   [16]byte
	cmdKey [16]byte
}

func NewConnector(name string, inner proxy.Connector, uuidStr string) (*Connector, error) {
	uuid, err := utils.StrToUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	c := &Connector{
		Inner:  inner,
		uuid:   uuid,
		cmdKey: GetKey(uuid),
	}
	c.InitBase(name)
	return c, nil
}

func newRequestHeader(addr string, port int) (*requestHeader, error) {
	h := &requestHeader{addr: addr, port: port}

	var rnd [16 + 16 + 1 + 1]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return nil, err
	}
	copy(h.key[:], rnd[:16])
	copy(h.iv[:], rnd[16:32])
	h.rv = rnd[32]

	h.padding = make([]byte, rnd[33]&0x0f)
	if _, err := rand.Read(h.padding); err != nil {
		return nil, err
	}
	return h, nil
}

// Connect 把请求头部 和 加密后的 leftover 作为 Inner 的 leftover 一起发送.
func (c *Connector) Connect(ctx context.Context, addr string, port int, leftover []byte) (netLayer.Stream, error) {
	if len(addr) == 0 || len(addr) > maxAddrLen {
		return nil, utils.ProtocolErr("vmess address length out of range", len(addr))
	}

	h, err := newRequestHeader(addr, port)
	if err != nil {
		return nil, err
	}
	conn := newConn(h)

	buf := sealRequest(c.uuid, c.cmdKey, h, time.Now())
	if len(leftover) > 0 {
		buf = conn.w.seal(buf, leftover)
	}

	s, err := c.Inner.Connect(ctx, addr, port, buf)
	if err != nil {
		return nil, err
	}
	conn.inner = s

	if ce := utils.CanLogDebug("vmess request sent"); ce != nil {
		ce.Write(zap.String("connector", c.Name()), zap.String("target", utils.JoinHostPort(addr, port)), zap.Int("leftover", len(leftover)))
	}
	return conn, nil
}
