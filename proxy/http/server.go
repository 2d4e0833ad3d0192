//Package http implements an http proxy acceptor and an http CONNECT connector.
package http

import (
	"bytes"

	"github.com/e1732a364fed/forwardproxy/httpLayer"
	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
)

const Name = "http"

// Server 实现 proxy.Acceptor, 支持 CONNECT 和 普通的http代理请求 (GET http://host/path 等).
type Server struct{}

func connectReturnBytes(version string) []byte {
	return []byte(version + " 200 Connection Established\r\nConnection close\r\n\r\n")
}

func (Server) Accept(client netLayer.Stream) (addr string, port int, leftover []byte, err error) {
	head, rest, err := httpLayer.ReadHead(client)
	if err != nil {
		return
	}

	rh, err := httpLayer.ParseRequest(head)
	if err != nil {
		return
	}
	addr, port = rh.Host, rh.Port

	//rfc: https://datatracker.ietf.org/doc/html/rfc7231#section-4.3.6
	// "CONNECT is intended only for use in requests to a proxy.  " 总之CONNECT命令专门用于代理.
	if rh.IsConnect() {
		//正常来说我们应该先dial，dial成功之后再返回200，但是这里的客户端在收到200之前不会发送任何数据,
		// 所以先返回 可以让 客户端的数据 更早地到达.
		if _, err = client.Write(connectReturnBytes(rh.Version)); err != nil {
			err = utils.TransportErr("write CONNECT reply", err)
			return
		}
		// 客户端可能不等回应就发送了数据, 比如 tls 的 ClientHello
		client.Unread(rest)
		return
	}

	// 普通http代理, 请求原样转发, 只去掉 Proxy- 开头的头部
	var buf bytes.Buffer
	buf.Write(httpLayer.StripProxyHeaders(head))
	buf.WriteString(httpLayer.HeadTerminator)
	buf.Write(rest)
	leftover = buf.Bytes()
	return
}
