/*
Package machine 定义一个 可以直接运行的代理机器; 它把 监听, 握手, 分配, 拨号, 转发 包装起来，对外像一个黑盒子。

关键点是不使用任何静态变量，所有变量都放在machine中, 所以同一进程中可以运行多个 M (测试中即是如此).
*/
package machine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/proxy/socks5http"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	DefaultListenPort       = 1080
	DefaultListenAddr       = "localhost:1080"
	DefaultHandshakeTimeout = 4 * time.Second
)

type Conf struct {
	ListenAddr string

	// 为 true 时 每个连接开头必须带有 PROXY protocol 头部
	ProxyProtocol bool

	// 从 accept 到 握手完成 的最长时间, 0 则使用 DefaultHandshakeTimeout.
	// 拨号不受此限制, 转发阶段没有超时.
	HandshakeTimeout time.Duration

	// ReloadRules 时读取的文件
	RulesFile string

	ApiServer proxy.ApiServerConf
}

// 统计数据
type Stats struct {
	ActiveConnectionCount      atomic.Int32
	AllConnectionCount         atomic.Uint64
	AllDownloadBytesSinceStart atomic.Uint64
	AllUploadBytesSinceStart   atomic.Uint64
}

type M struct {
	Conf
	Stats

	Acceptor   proxy.Acceptor
	Dispatcher *proxy.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Session]struct{}
	nextID   uint64
	running  bool

	wg sync.WaitGroup

	apiServer   *http.Server
	apiListener net.Listener
}

// New 返回的 M 使用 socks5http.Server 作为 Acceptor, 可以在 Start 之前替换.
func New(conf Conf, d *proxy.Dispatcher) *M {
	if conf.ListenAddr == "" {
		conf.ListenAddr = DefaultListenAddr
	} else if a, err := netLayer.NewAddr(conf.ListenAddr, DefaultListenPort); err == nil {
		//允许只给出主机
		conf.ListenAddr = a.String()
	}
	if conf.HandshakeTimeout <= 0 {
		conf.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &M{
		Conf:       conf,
		Acceptor:   socks5http.Server{},
		Dispatcher: d,
		sessions:   make(map[*Session]struct{}),
	}
}

func (m *M) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Addr 返回实际监听的地址, 未运行时为 nil.
func (m *M) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Start 开始监听, 不阻塞. 一个 M 只能 Start 一次.
func (m *M) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.ctx != nil {
		return utils.ErrInErr{ErrDesc: "machine already started", ErrDetail: utils.ErrWrongParameter}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	lis, err := netLayer.ListenAndAccept(m.ListenAddr, m.ProxyProtocol, m.handle)
	if err != nil {
		m.cancel()
		return err
	}
	m.listener = lis

	if m.ApiServer.Addr != "" {
		if err := m.runApiServer(); err != nil {
			lis.Close()
			m.cancel()
			return err
		}
	}
	m.running = true

	if ce := utils.CanLogInfo("listening"); ce != nil {
		ce.Write(zap.String("addr", lis.Addr().String()), zap.Bool("proxy_protocol", m.ProxyProtocol), zap.Int("forwards", len(m.Dispatcher.Forwards())))
	}
	return nil
}

// Stop 关闭监听, 取消所有正在进行的拨号, 关闭所有客户端连接, 然后等待所有 Session 结束.
func (m *M) Stop() {
	utils.Info("Stopping...")

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.listener.Close()
	if m.apiServer != nil {
		m.apiServer.Close()
	}
	m.cancel()
	for s := range m.sessions {
		s.close()
	}
	m.mu.Unlock()

	m.wg.Wait()

	if ce := utils.CanLogInfo("stopped"); ce != nil {
		ce.Write(zap.Uint64("sessions", m.AllConnectionCount.Load()), zap.Uint64("up", m.AllUploadBytesSinceStart.Load()), zap.Uint64("down", m.AllDownloadBytesSinceStart.Load()))
	}
}

// ApiAddr 返回 api server 实际监听的地址, 未开启时为 nil.
func (m *M) ApiAddr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.apiListener == nil {
		return nil
	}
	return m.apiListener.Addr()
}

// ReloadRules 重新读取 RulesFile 并替换规则表. 读取失败时保留旧的规则.
func (m *M) ReloadRules() error {
	if m.RulesFile == "" {
		return utils.ErrInErr{ErrDesc: "no rules file configured", ErrDetail: utils.ErrConfig}
	}
	table, err := netLayer.LoadRulesFile(m.RulesFile)
	if err != nil {
		return err
	}
	m.Dispatcher.Matcher().Reload(table)

	if ce := utils.CanLogInfo("rules reloaded"); ce != nil {
		ce.Write(zap.String("file", m.RulesFile))
	}
	return nil
}

func (m *M) handle(c net.Conn) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		c.Close()
		return
	}
	m.nextID++
	s := newSession(m, m.nextID, c)
	m.sessions[s] = struct{}{}
	m.wg.Add(1)
	m.mu.Unlock()

	m.ActiveConnectionCount.Inc()
	m.AllConnectionCount.Inc()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, s)
		m.mu.Unlock()
		m.ActiveConnectionCount.Dec()
		m.wg.Done()
	}()

	s.run()
}

func (m *M) PrintAllState(w io.Writer) {
	fmt.Fprintln(w, "activeConnectionCount", m.ActiveConnectionCount.Load())
	fmt.Fprintln(w, "allConnectionCount", m.AllConnectionCount.Load())
	fmt.Fprintln(w, "allDownloadBytesSinceStart", m.AllDownloadBytesSinceStart.Load())
	fmt.Fprintln(w, "allUploadBytesSinceStart", m.AllUploadBytesSinceStart.Load())

	for i, c := range m.Dispatcher.Forwards() {
		fmt.Fprintln(w, "forward", i, c.Name(), c.Weight())
	}
}
