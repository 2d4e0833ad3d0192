/*Package socks5 implements the socks5 acceptor.

只支持 无认证 和 CONNECT 命令, 见 https://www.ietf.org/rfc/rfc1928.txt
*/
package socks5

const Name = "socks5"

// Version is socks5 version number.
const Version5 = 0x05

// SOCKS auth type
const (
	AuthNone         = 0x00
	AuthNoAcceptable = 0xff
)

// SOCKS request commands as defined in RFC 1928 section 4
const (
	CmdConnect      = 0x01
	CmdBind         = 0x02
	CmdUDPAssociate = 0x03
)

// SOCKS address types as defined in RFC 1928 section 4
//	Note: vmess用的是123，而这里用的是134，所以是不一样的。
const (
	ATypIP4    = 0x1
	ATypDomain = 0x3
	ATypIP6    = 0x4
)

var (
	noAuthReply   = []byte{Version5, AuthNone}
	noAcceptReply = []byte{Version5, AuthNoAcceptable}

	// 绑定地址对客户端没有意义, 全部置0
	successReply = []byte{Version5, 0x00, 0x00, ATypIP4, 0, 0, 0, 0, 0, 0}
)
