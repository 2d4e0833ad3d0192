package machine

import (
	"net"
	"sync"
	"time"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type State int32

const (
	Accepting State = iota
	Dispatching
	Connecting
	Relaying
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Accepting:
		return "accepting"
	case Dispatching:
		return "dispatching"
	case Connecting:
		return "connecting"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// 日志中打印 来自客户端的目标地址时 的最大长度
const maxLoggedTarget = 128

// Session 拥有一个客户端连接, 从 accept 直到两端都关闭.
type Session struct {
	m  *M
	id uint64

	raw    net.Conn
	client netLayer.Stream

	state atomic.Int32

	mu     sync.Mutex
	peer   netLayer.Stream
	closed bool

	target string
}

func newSession(m *M, id uint64, c net.Conn) *Session {
	return &Session{
		m:      m,
		id:     id,
		raw:    c,
		client: netLayer.NewTCPStream(c),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if ce := utils.CanLogDebug("session state"); ce != nil {
		ce.Write(zap.Uint64("id", s.id), zap.Stringer("state", st), zap.String("target", s.target))
	}
}

// close 可被 Stop 并发调用, 使 Session 中阻塞的读写返回.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.client.Close()
	if s.peer != nil {
		s.peer.Close()
	}
}

// 拨号成功之后设置 peer; 若 Session 已被关闭, 返回 false.
func (s *Session) setPeer(p netLayer.Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.peer = p
	return true
}

func (s *Session) fail(stage string, err error) {
	s.setState(Failed)
	s.client.Close()

	if ce := utils.CanLogWarn("session failed"); ce != nil {
		ce.Write(
			zap.Uint64("id", s.id),
			zap.String("stage", stage),
			zap.String("from", s.raw.RemoteAddr().String()),
			zap.String("target", s.target),
			zap.Error(err),
		)
	}
}

func (s *Session) run() {
	s.setState(Accepting)

	s.raw.SetDeadline(time.Now().Add(s.m.HandshakeTimeout))
	addr, port, leftover, err := s.m.Acceptor.Accept(s.client)
	if err != nil {
		s.fail("accept", err)
		return
	}
	s.raw.SetDeadline(time.Time{})

	s.target = utils.Truncate(utils.JoinHostPort(addr, port), maxLoggedTarget)

	s.setState(Dispatching)
	c := s.m.Dispatcher.Dispatch(addr, port)

	s.setState(Connecting)
	peer, err := c.Connect(s.m.ctx, addr, port, leftover)
	if err != nil {
		s.m.Dispatcher.Feedback(c, false)
		s.fail("connect "+c.Name(), err)
		return
	}
	if !s.setPeer(peer) {
		peer.Close()
		s.fail("connect "+c.Name(), utils.TransportErr("session", net.ErrClosed))
		return
	}

	if ce := utils.CanLogInfo("relay"); ce != nil {
		ce.Write(zap.Uint64("id", s.id), zap.String("from", s.raw.RemoteAddr().String()), zap.String("target", s.target), zap.String("via", c.Name()))
	}

	s.setState(Relaying)
	r := netLayer.Relay(s.client, peer)

	s.m.AllUploadBytesSinceStart.Add(uint64(r.Up))
	s.m.AllDownloadBytesSinceStart.Add(uint64(r.Down))

	s.feedback(c, r)

	if r.Err != nil {
		s.fail("relay "+c.Name(), r.Err)
		return
	}
	s.setState(Closed)
}

// 干净地结束 为成功; 出错且对端没有返回过数据 为失败; 出错但已经交换过数据 不调整.
func (s *Session) feedback(c proxy.Connector, r netLayer.RelayResult) {
	switch {
	case r.Err == nil:
		s.m.Dispatcher.Feedback(c, true)
	case !r.Exchanged():
		s.m.Dispatcher.Feedback(c, false)
	}
}
