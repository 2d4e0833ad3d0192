package netLayer

import (
	"net"
	"strconv"
	"strings"

	"github.com/e1732a364fed/forwardproxy/utils"
)

// vmess 中 域名 的地址类型; 注意与 socks5 的区别，socks5 相同含义的值是3. 我们只发送域名形式.
const AtypDomain byte = 2

// Addr 表示一个 传输层的目标. Name 可以是域名, 也可以是 ip 的字符串形式.
type Addr struct {
	Name string
	Port int
}

// NewAddr 解析 "host:port", ipv6 须带方括号. 端口省略时使用 defaultPort.
func NewAddr(hostPort string, defaultPort int) (Addr, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		if strings.Contains(err.Error(), "missing port") {
			return Addr{Name: strings.Trim(hostPort, "[]"), Port: defaultPort}, nil
		}
		return Addr{}, utils.ConfigErr("invalid host:port", hostPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Addr{}, utils.ConfigErr("invalid port", hostPort)
	}
	return Addr{Name: host, Port: port}, nil
}

// String 返回 host:port, ipv6 会被加上方括号.
func (a Addr) String() string {
	return utils.JoinHostPort(a.Name, a.Port)
}
