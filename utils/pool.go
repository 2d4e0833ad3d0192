package utils

import (
	"bytes"
	"sync"
)

// relay 时一次读取的最大长度, 64k. 作为参考, io.Copy 内部默认为 32k.
const MaxBufLen = 64 * 1024

var (
	packetPool = sync.Pool{
		New: func() any {
			return make([]byte, MaxBufLen)
		},
	}

	bufPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

// GetBuf 从Pool中获取一个 空的 *bytes.Buffer. 用完须调用 PutBuf, 且之后不得再引用其内容.
func GetBuf() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func PutBuf(buf *bytes.Buffer) {
	buf.Reset()
	bufPool.Put(buf)
}

// GetPacket 获取一个 长度为 MaxBufLen 的 []byte.
func GetPacket() []byte {
	return packetPool.Get().([]byte)
}

// PutPacket 只接受 GetPacket 获取的 []byte, 其它长度的被丢弃.
func PutPacket(bs []byte) {
	if cap(bs) < MaxBufLen {
		return
	}
	packetPool.Put(bs[:MaxBufLen])
}
