package proxy

import (
	"context"

	"github.com/e1732a364fed/forwardproxy/netLayer"
)

// Connector 向一个目标拨号, 得到一个 Stream.
//
// leftover 非空时, Connect 保证在返回之前 它已经被写入了返回的 Stream,
// 调用者不需要特殊处理 "连接后的第一次写".
//
// Connector 在启动时建立, 被所有会话共享, 所以必须可以被并发调用.
type Connector interface {
	Name() string

	Weight() float64
	IncreaseWeight()
	DecreaseWeight()

	Connect(ctx context.Context, addr string, port int, leftover []byte) (netLayer.Stream, error)
}

// Acceptor 在一个新接受的客户端 Stream 上完成入站协议的握手,
// 返回客户端请求的目标, 以及 需要被 首先发往目标的数据.
type Acceptor interface {
	Accept(client netLayer.Stream) (addr string, port int, leftover []byte, err error)
}
