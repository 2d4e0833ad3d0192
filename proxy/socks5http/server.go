/*Package socks5http provides accepting both socks5 and http at one port.

This package imports proxy/socks5 and proxy/http package.
*/
package socks5http

import (
	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy/http"
	"github.com/e1732a364fed/forwardproxy/proxy/socks5"
	"github.com/e1732a364fed/forwardproxy/utils"
)

const Name = "socks5http"

// Server 根据第一个字节选择协议: 0x05 为 socks5, 否则为 http.
type Server struct {
	hs http.Server
	ss socks5.Server
}

func (s Server) Accept(client netLayer.Stream) (addr string, port int, leftover []byte, err error) {
	bs := make([]byte, 1024)
	n, err := client.Read(bs)
	if err != nil {
		err = utils.TransportErr("read first chunk", err)
		return
	}
	client.Unread(bs[:n])

	if bs[0] == socks5.Version5 {
		return s.ss.Accept(client)
	}
	return s.hs.Accept(client)
}
