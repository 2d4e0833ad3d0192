package proxy

import (
	"context"

	"github.com/e1732a364fed/forwardproxy/netLayer"
)

const BlockName = "BLOCK"

// NullConnector 不进行任何网络io, 返回一个 NullStream: 写入被丢弃, 读立即得到 EOF.
// 用于实现 block 规则.
type NullConnector struct {
	Base
}

func NewNullConnector(name string) *NullConnector {
	c := &NullConnector{}
	c.InitBase(name)
	return c
}

func (*NullConnector) Connect(context.Context, string, int, []byte) (netLayer.Stream, error) {
	return netLayer.NullStream{}, nil
}
