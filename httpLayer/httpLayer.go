/*
Package httpLayer 提供 http/1 头部的读取与解析, 供 http代理的入站和 CONNECT 出站使用.

我们不处理 http 的语义 (缓存, 压缩, chunked 等), 只关心请求行, Host, 和 Proxy- 开头的头部.
*/
package httpLayer

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/e1732a364fed/forwardproxy/utils"
)

const (
	HeadTerminator = "\r\n\r\n"

	// 头部最大长度, 超过则认为对端不是一个正常的http客户端
	MaxHeadLen = 64 * 1024

	DefaultPort = 80
)

var ErrHeadTooLong = utils.ProtocolErr("http head too long", MaxHeadLen)

var (
	requestLineRegexp = regexp.MustCompile(`^(\w+) [^ ]+ (HTTP/[^ \r\n]+)\r\n`)
	hostRegexp        = regexp.MustCompile(`\r\nHost: ([^ :\[\]\r\n]+|\[[:0-9a-fA-F]+\])(:([0-9]+))?`)
)

// ReadHead 不断读取 r, 直到读到 HeadTerminator.
// head 不包含 HeadTerminator; rest 是同一次读取中 位于头部之后的数据.
func ReadHead(r io.Reader) (head, rest []byte, err error) {
	bs := utils.GetPacket()
	defer utils.PutPacket(bs)

	var buf bytes.Buffer
	searched := 0
	for {
		n, e := r.Read(bs)
		buf.Write(bs[:n])

		// 终止符可能跨越两次读取
		from := searched - len(HeadTerminator) + 1
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(buf.Bytes()[from:], []byte(HeadTerminator)); i >= 0 {
			all := buf.Bytes()
			i += from
			head = all[:i]
			rest = all[i+len(HeadTerminator):]
			return
		}
		searched = buf.Len()

		if searched > MaxHeadLen {
			return nil, nil, ErrHeadTooLong
		}
		if e != nil {
			if errors.Is(e, io.EOF) {
				if buf.Len() == 0 {
					return nil, nil, utils.TransportErr("read http head", e)
				}
				return nil, nil, utils.ProtocolErr("incomplete http head", utils.Truncate(buf.String(), 64))
			}
			return nil, nil, utils.TransportErr("read http head", e)
		}
	}
}

// RequestHead 是从请求头部中得到的信息.
type RequestHead struct {
	Method  string
	Version string //如 HTTP/1.1

	Host string //ipv6 不带方括号
	Port int
}

func (rh RequestHead) IsConnect() bool {
	return rh.Method == "CONNECT"
}

// ParseRequest 解析请求行 和 Host 头部. head 不含 HeadTerminator.
func ParseRequest(head []byte) (rh RequestHead, err error) {
	h := append(head[:len(head):len(head)], "\r\n"...)

	m := requestLineRegexp.FindSubmatch(h)
	if m == nil {
		return rh, utils.ProtocolErr("bad http request line", utils.Truncate(string(head), 64))
	}
	rh.Method = string(m[1])
	rh.Version = string(m[2])

	hm := hostRegexp.FindSubmatch(h)
	if hm == nil {
		return rh, utils.ProtocolErr("no Host header", utils.Truncate(string(head), 64))
	}
	rh.Host = strings.Trim(string(hm[1]), "[]")
	rh.Port = DefaultPort
	if len(hm[3]) > 0 {
		p, e := strconv.Atoi(string(hm[3]))
		if e != nil || p <= 0 || p > 65535 {
			return rh, utils.ProtocolErr("bad port in Host header", string(hm[3]))
		}
		rh.Port = p
	}
	return
}

// StripProxyHeaders 去掉所有以 Proxy- 开头的头部行, 如 Proxy-Connection, Proxy-Authorization.
func StripProxyHeaders(head []byte) []byte {
	lines := bytes.Split(head, []byte("\r\n"))
	result := lines[:0]
	for i, l := range lines {
		if i > 0 && bytes.HasPrefix(l, []byte("Proxy-")) {
			continue
		}
		result = append(result, l)
	}
	return bytes.Join(result, []byte("\r\n"))
}

// CheckConnectResponse 检查 CONNECT 请求的回应状态行.
func CheckConnectResponse(head []byte) error {
	if !bytes.HasPrefix(head, []byte("HTTP/1.1 200")) {
		return utils.ProtocolErr("CONNECT refused", utils.Truncate(string(head), 64))
	}
	return nil
}

// ConnectRequest 生成发往上游的 CONNECT 请求, 包含 HeadTerminator.
func ConnectRequest(addr string, port int) []byte {
	hp := utils.JoinHostPort(addr, port)
	return []byte("CONNECT " + hp + " HTTP/1.1\r\nHost: " + hp + HeadTerminator)
}
