package proxy

import (
	"errors"
	"testing"

	"github.com/e1732a364fed/forwardproxy/utils"
)

const testConfStr = `
[app]
loglevel = 0
logfile = "vs.log"

[listen]
url = "0.0.0.0:1080"
proxy_protocol = true
handshake_timeout = 8

[rules]
default = "forward"
file = "my_rules.txt"

[api]
addr = "127.0.0.1:48345"
admin_pass = "secret"

[[peer]]
url = "http://127.0.0.1:3128"

[[peer]]
url = ""

[[peer]]
url = "vmess://a684455c-b14f-11ea-bf0d-42010aaa0003@example.com:443?net=wss"
`

func TestLoadTomlConf(t *testing.T) {
	c, err := LoadTomlConfStr(testConfStr)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if c.App == nil || c.App.LogLevel == nil || *c.App.LogLevel != 0 || c.App.LogFile != "vs.log" {
		t.Fail()
	}
	if c.Listen == nil || c.Listen.URL != "0.0.0.0:1080" || !c.Listen.ProxyProtocol || c.Listen.HandshakeTimeout != 8 {
		t.Fail()
	}
	if c.Rules == nil || c.Rules.Default != "forward" || c.Rules.File != "my_rules.txt" {
		t.Fail()
	}
	if c.ApiServer == nil || c.ApiServer.Addr != "127.0.0.1:48345" || c.ApiServer.AdminPass != "secret" || c.ApiServer.PlainHttp {
		t.Fail()
	}
	if urls := c.PeerURLs(); len(urls) != 2 || urls[0] != "http://127.0.0.1:3128" {
		t.Log(urls)
		t.Fail()
	}
}

func TestLoadTomlConfErrors(t *testing.T) {
	if _, err := LoadTomlConfStr("[listen\nurl=1"); !errors.Is(err, utils.ErrConfig) {
		t.Log(err)
		t.Fail()
	}
	if _, err := LoadTomlConfFile("/nonexistent/conf.toml"); !errors.Is(err, utils.ErrConfig) {
		t.Fail()
	}
}
