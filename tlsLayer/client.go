package tlsLayer

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/e1732a364fed/forwardproxy/utils"
	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
)

// ParseFingerprint 把一个浏览器名称转换为 utls 的 ClientHelloID. 不认识的名称使用 chrome.
func ParseFingerprint(str string) utls.ClientHelloID {
	switch strings.ToLower(str) {
	case "firefox":
		return utls.HelloFirefox_Auto
	case "ios":
		return utls.HelloIOS_Auto
	case "safari":
		return utls.HelloSafari_Auto
	case "golang":
		return utls.HelloGolang
	case "android":
		return utls.HelloAndroid_11_OkHttp
	case "360":
		return utls.Hello360_Auto
	case "edge":
		return utls.HelloEdge_Auto
	case "random":
		return utls.HelloRandomized
	}
	return utls.HelloChrome_Auto
}

// Client 的配置在建立时就固定下来, 之后可以被多个 goroutine 同时使用.
type Client struct {
	tlsConfig *tls.Config

	useUTls         bool
	uTlsConfig      utls.Config
	utlsFingerprint utls.ClientHelloID
}

func NewClient(conf Conf) *Client {
	c := &Client{}

	if conf.Fingerprint != "" {
		c.useUTls = true
		c.uTlsConfig = utls.Config{
			InsecureSkipVerify: conf.Insecure,
			ServerName:         conf.ServerName,
			NextProtos:         conf.AlpnList,
		}
		c.utlsFingerprint = ParseFingerprint(conf.Fingerprint)

		if ce := utils.CanLogInfo("Using uTls fingerprint"); ce != nil {
			ce.Write(zap.String("host", conf.ServerName), zap.String("fingerprint", c.utlsFingerprint.Client))
		}
		return c
	}

	c.tlsConfig = &tls.Config{
		InsecureSkipVerify: conf.Insecure,
		ServerName:         conf.ServerName,
		NextProtos:         conf.AlpnList,
	}
	return c
}

// Handshake 在 underlay 上进行 tls握手. ctx 的 deadline 会在握手期间作用于 underlay.
//
// 返回的 net.Conn 为 *tls.Conn 或 *utls.UConn, 都支持 CloseWrite.
func (c *Client) Handshake(ctx context.Context, underlay net.Conn) (net.Conn, error) {
	if dl, ok := ctx.Deadline(); ok {
		underlay.SetDeadline(dl)
		defer underlay.SetDeadline(time.Time{})
	}

	if c.useUTls {
		configCopy := c.uTlsConfig //uTlsConfig 握手一次后会被修改, 只能拷贝使用

		utlsConn := utls.UClient(underlay, &configCopy, c.utlsFingerprint)
		if err := utlsConn.Handshake(); err != nil {
			return nil, utils.TransportErr("utls handshake", err)
		}
		return utlsConn, nil
	}

	officialConn := tls.Client(underlay, c.tlsConfig)
	if err := officialConn.HandshakeContext(ctx); err != nil {
		return nil, utils.TransportErr("tls handshake", err)
	}
	return officialConn, nil
}
