package socks5

import (
	"bytes"
	"io"
	"net"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
)

// Server 实现 proxy.Acceptor. 任何不符合的情况都直接失败, 不进行协商.
type Server struct{}

func readFull(r io.Reader, bs []byte) error {
	if _, err := io.ReadFull(r, bs); err != nil {
		return utils.TransportErr("read socks5", err)
	}
	return nil
}

func (Server) Accept(client netLayer.Stream) (addr string, port int, leftover []byte, err error) {
	bs := make([]byte, 2, 256)

	// greeting: ver, nmethods, methods...
	if err = readFull(client, bs); err != nil {
		return
	}
	if bs[0] != Version5 {
		err = utils.ProtocolErr("socks5 wrong version", bs[0])
		return
	}
	methods := bs[:bs[1]]
	if err = readFull(client, methods); err != nil {
		return
	}
	if bytes.IndexByte(methods, AuthNone) < 0 {
		client.Write(noAcceptReply)
		err = utils.ProtocolErr("socks5 no acceptable auth method", methods)
		return
	}
	if _, err = client.Write(noAuthReply); err != nil {
		err = utils.TransportErr("write socks5 auth reply", err)
		return
	}

	// request: ver, cmd, rsv, atyp
	bs = bs[:4]
	if err = readFull(client, bs); err != nil {
		return
	}
	if bs[0] != Version5 {
		err = utils.ProtocolErr("socks5 wrong version in request", bs[0])
		return
	}
	if bs[1] != CmdConnect {
		err = utils.ProtocolErr("socks5 unsupported command", bs[1])
		return
	}
	if bs[2] != 0 {
		err = utils.ProtocolErr("socks5 reserved byte not zero", bs[2])
		return
	}

	switch atyp := bs[3]; atyp {
	case ATypIP4, ATypIP6:
		l := net.IPv4len
		if atyp == ATypIP6 {
			l = net.IPv6len
		}
		ip := make(net.IP, l)
		if err = readFull(client, ip); err != nil {
			return
		}
		addr = ip.String()
	case ATypDomain:
		bs = bs[:1]
		if err = readFull(client, bs); err != nil {
			return
		}
		if bs[0] == 0 {
			err = utils.ProtocolErr("socks5 empty domain", nil)
			return
		}
		bs = bs[:bs[0]]
		if err = readFull(client, bs); err != nil {
			return
		}
		addr = string(bs)
	default:
		err = utils.ProtocolErr("socks5 unsupported address type", atyp)
		return
	}

	bs = bs[:2]
	if err = readFull(client, bs); err != nil {
		return
	}
	port = int(bs[0])<<8 | int(bs[1])

	if _, err = client.Write(successReply); err != nil {
		err = utils.TransportErr("write socks5 reply", err)
	}
	return
}
