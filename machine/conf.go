package machine

import (
	"time"

	"github.com/e1732a364fed/forwardproxy/proxy"
)

// LoadConf 从标准配置中取出 machine 所需的部分. 没有给出的项 保持零值, 由 New 填入默认值.
func LoadConf(sc *proxy.StandardConf) (c Conf) {
	if l := sc.Listen; l != nil {
		c.ListenAddr = l.URL
		c.ProxyProtocol = l.ProxyProtocol
		c.HandshakeTimeout = time.Duration(l.HandshakeTimeout) * time.Second
	}
	if r := sc.Rules; r != nil {
		c.RulesFile = r.File
	}
	if a := sc.ApiServer; a != nil {
		c.ApiServer = *a
	}
	return
}
