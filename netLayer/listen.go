package netLayer

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/pires/go-proxyproto"
	"go.uber.org/zap"
)

func loopAccept(listener net.Listener, acceptFunc func(net.Conn)) {
	for {
		newc, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ce := utils.CanLogDebug("listener closed"); ce != nil {
					ce.Write(zap.Error(err))
				}
				break
			}
			if ce := utils.CanLogWarn("failed to accept connection"); ce != nil {
				ce.Write(zap.Error(err))
			}
			if strings.Contains(err.Error(), "too many") {
				if ce := utils.CanLogWarn("To many incoming conn! Will Sleep."); ce != nil {
					ce.Write()
				}
				time.Sleep(time.Millisecond * 500)
			}
			continue
		}
		go acceptFunc(newc)
	}
}

// ListenAndAccept 监听tcp, 非阻塞，在自己的goroutine中 Accept.
// 返回的 listener 被关闭后, accept 循环退出.
//
// acceptProxyProtocol 为 true 时, 每个连接开头必须带有 PROXY protocol (v1/v2) 头部,
// 此时 RemoteAddr 为头部中声明的真实客户端地址. 用于部署在 haproxy 等负载均衡之后的情况.
func ListenAndAccept(addr string, acceptProxyProtocol bool, acceptFunc func(net.Conn)) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, utils.TransportErr("listen", err)
	}
	if acceptProxyProtocol {
		listener = &proxyproto.Listener{
			Listener: listener,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
		}
	}
	go loopAccept(listener, acceptFunc)
	return listener, nil
}
