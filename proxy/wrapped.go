package proxy

import (
	"context"

	"github.com/e1732a364fed/forwardproxy/netLayer"
)

// WrappedConnector 把一个固定的 上游地址 绑定到 Inner 上. Connect 时忽略传入的地址.
//
// 用于叠加协议: 上层 (ws, http CONNECT, vmess) 通过它连接到同一个 上游服务器.
type WrappedConnector struct {
	Base

	Inner Connector
	Addr  string
	Port  int
}

func NewWrappedConnector(inner Connector, addr string, port int) *WrappedConnector {
	c := &WrappedConnector{Inner: inner, Addr: addr, Port: port}
	c.InitBase(inner.Name() + "@" + netLayer.Addr{Name: addr, Port: port}.String())
	return c
}

func (c *WrappedConnector) Connect(ctx context.Context, _ string, _ int, leftover []byte) (netLayer.Stream, error) {
	return c.Inner.Connect(ctx, c.Addr, c.Port, leftover)
}
