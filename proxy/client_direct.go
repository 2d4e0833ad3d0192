package proxy

import (
	"context"
	"net"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/tlsLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

const (
	DirectName  = "DIRECT"
	ForwardName = "FORWARD"
)

// TCPConnector 直接拨号目标, 可选地在其上进行 tls握手.
// tls 的配置在建立时固定, 因为一个 Connector 代表一种固定的出站方式.
type TCPConnector struct {
	Base

	tlsClient *tlsLayer.Client
	dialer    net.Dialer
}

// tlsClient 可为 nil.
func NewTCPConnector(name string, tlsClient *tlsLayer.Client) *TCPConnector {
	c := &TCPConnector{tlsClient: tlsClient}
	c.InitBase(name)
	return c
}

func (c *TCPConnector) Connect(ctx context.Context, addr string, port int, leftover []byte) (netLayer.Stream, error) {
	hostPort := utils.JoinHostPort(addr, port)

	conn, err := c.dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, utils.TransportErr("dial "+hostPort, err)
	}

	if c.tlsClient != nil {
		tlsConn, err := c.tlsClient.Handshake(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	if ce := utils.CanLogDebug("tcp connected"); ce != nil {
		ce.Write(zap.String("connector", c.Name()), zap.String("target", hostPort), zap.Bool("tls", c.tlsClient != nil))
	}

	s := netLayer.NewTCPStream(conn)
	if len(leftover) > 0 {
		if _, err := s.Write(leftover); err != nil {
			s.Close()
			return nil, utils.TransportErr("write leftover", err)
		}
	}
	return s, nil
}
