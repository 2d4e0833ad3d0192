package netLayer

import (
	"io"
	"net"
	"sync"
)

// Stream 是一个双工的字节流, 所有的层 (tcp, tls, ws, vmess) 都以 Stream 的形式互相包装.
//
// Read 在对端正常结束时返回 io.EOF;
// CloseWrite 表示本端不会再写 (半关闭), 不影响读;
// Close 释放所有资源, 可多次调用.
//
// 每个 Stream 都有一个 pending 缓存, 用于存放 已经从底层读出 但还没交给调用者的数据.
// Read 必须先消耗 pending, 再去读底层.
type Stream interface {
	io.ReadWriteCloser

	CloseWrite() error

	// ReadBuffered 取走已经缓存的数据, 绝不会阻塞, 也不会访问底层连接.
	ReadBuffered() []byte

	// Unread 把 b 放回 pending 的最前面, 下一次 Read 会先读到它.
	Unread(b []byte)
}

// Pending 实现 Stream 的 pending 缓存部分, 供各个 Stream 嵌入.
// pending 只在读的一侧使用, 所以不加锁.
type Pending struct {
	pending []byte
}

func (p *Pending) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	nb := make([]byte, len(b)+len(p.pending))
	copy(nb, b)
	copy(nb[len(b):], p.pending)
	p.pending = nb
}

func (p *Pending) ReadBuffered() []byte {
	b := p.pending
	p.pending = nil
	return b
}

// ReadPending 若有 pending, 则读入 b 并返回 true.
func (p *Pending) ReadPending(b []byte) (n int, ok bool) {
	if len(p.pending) == 0 {
		return 0, false
	}
	n = copy(b, p.pending)
	p.pending = p.pending[n:]
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return n, true
}

type closeWriter interface {
	CloseWrite() error
}

// TCPStream 包装一个 net.Conn (tcp, tls, unix 均可).
type TCPStream struct {
	Pending
	net.Conn

	closeOnce sync.Once
	closeErr  error
}

func NewTCPStream(c net.Conn) *TCPStream {
	return &TCPStream{Conn: c}
}

func (s *TCPStream) Read(p []byte) (int, error) {
	if n, ok := s.ReadPending(p); ok {
		return n, nil
	}
	return s.Conn.Read(p)
}

func (s *TCPStream) Write(p []byte) (int, error) {
	return s.Conn.Write(p)
}

// 对 proxyproto.Conn 这种包装, 通过 Raw 取出底层连接.
type rawConner interface {
	Raw() net.Conn
}

func (s *TCPStream) CloseWrite() error {
	c := s.Conn
	for {
		if cw, ok := c.(closeWriter); ok {
			return cw.CloseWrite()
		}
		rc, ok := c.(rawConner)
		if !ok {
			return nil
		}
		c = rc.Raw()
	}
}

func (s *TCPStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

// NullStream 丢弃所有写入, 读总是立即返回 io.EOF. 用于 block 规则, 不产生任何网络io.
type NullStream struct{}

func (NullStream) Read([]byte) (int, error) { return 0, io.EOF }
func (NullStream) Write(p []byte) (int, error) { return len(p), nil }
func (NullStream) CloseWrite() error { return nil }
func (NullStream) Close() error { return nil }
func (NullStream) ReadBuffered() []byte { return nil }
func (NullStream) Unread([]byte) {}
