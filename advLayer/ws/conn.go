package ws

import (
	"io"
	"sync"
	"time"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/gobwas/ws"
	"go.uber.org/zap"
)

const closeFrameTimeout = time.Second

// Conn 在内层 Stream 上读写 websocket 二进制帧, 实现 netLayer.Stream.
//
// ReadBuffered 只返回本层已经解出的数据, 不会去解析内层缓存中的帧.
type Conn struct {
	netLayer.Pending //一个帧的payload 没被读完的部分

	inner  netLayer.Stream
	masked bool

	wmu sync.Mutex //Read 中回复 pong 时也会写

	closeOnce sync.Once
	closeErr  error
}

func NewConn(inner netLayer.Stream, masked bool) *Conn {
	return &Conn{inner: inner, masked: masked}
}

func (c *Conn) Read(p []byte) (int, error) {
	if n, ok := c.ReadPending(p); ok {
		return n, nil
	}

	for {
		h, payload, err := readFrame(c.inner)
		if err != nil {
			return 0, err
		}

		switch h.OpCode {
		case ws.OpBinary, ws.OpText:
			if len(payload) == 0 {
				continue
			}
			n := copy(p, payload)
			c.Unread(payload[n:])
			return n, nil

		case ws.OpPing:
			if err := c.write(ws.OpPong, payload); err != nil {
				return 0, utils.TransportErr("write ws pong", err)
			}
		case ws.OpPong, ws.OpContinuation:

		case ws.OpClose:
			if ce := utils.CanLogDebug("ws close frame received"); ce != nil {
				ce.Write(zap.Int("len", len(payload)))
			}
			return 0, io.EOF

		default:
			return 0, utils.ProtocolErr("unexpected ws opcode", h.OpCode)
		}
	}
}

func (c *Conn) write(op ws.OpCode, p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeFrame(c.inner, op, p, c.masked)
}

// Write 把 p 作为一个二进制帧写出.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := c.write(ws.OpBinary, p); err != nil {
		return 0, utils.TransportErr("write ws frame", err)
	}
	return len(p), nil
}

// CloseWrite 传递到内层, websocket 本身没有半关闭.
func (c *Conn) CloseWrite() error {
	return c.inner.CloseWrite()
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Close 尽量发送一个 close 帧, 然后关闭内层.
// 若此时有其它写操作正阻塞着, 则不发送 close 帧, 直接关闭内层使其返回.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.wmu.TryLock() {
			if wd, ok := c.inner.(writeDeadliner); ok {
				wd.SetWriteDeadline(time.Now().Add(closeFrameTimeout))
			}
			writeFrame(c.inner, ws.OpClose, closeFrameBody(), c.masked)
			c.wmu.Unlock()
		}
		c.closeErr = c.inner.Close()
	})
	return c.closeErr
}
