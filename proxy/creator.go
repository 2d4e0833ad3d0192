package proxy

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/e1732a364fed/forwardproxy/tlsLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

// Creator 从一个 url 建立 Connector. name 已由 ConnectorFromURL 决定.
type Creator func(name string, u *url.URL) (Connector, error)

var creatorMap = make(map[string]Creator)

// 规定，每个 实现 Connector 的子包 必须在 init 中使用本函数注册它支持的 url scheme.
func RegisterConnector(scheme string, c Creator) {
	creatorMap[strings.ToLower(scheme)] = c
}

// SupportedSchemes 返回所有已注册的 scheme, 已排序.
func SupportedSchemes() []string {
	r := make([]string, 0, len(creatorMap))
	for k := range creatorMap {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// ConnectorFromURL 根据 scheme 调用已注册的 Creator.
//
// url 的 fragment 用作 Connector 的名称, 没有则使用 scheme://host:port;
// query 中的 weight 用作初始权重.
// 返回的错误都是 utils.ErrConfig 类型.
func ConnectorFromURL(rawURL string) (Connector, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, utils.ConfigErr("can't parse peer url", rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	creator, ok := creatorMap[scheme]
	if !ok {
		return nil, utils.ConfigErr("unsupported peer scheme", u.Scheme)
	}

	if _, _, err := HostPort(u); err != nil {
		return nil, err
	}

	name := u.Fragment
	if name == "" {
		name = scheme + "://" + u.Host
	}

	c, err := creator(name, u)
	if err != nil {
		return nil, err
	}

	if ws := u.Query().Get("weight"); ws != "" {
		w, err := strconv.ParseFloat(ws, 64)
		if err != nil {
			return nil, utils.ConfigErr("bad weight", ws)
		}
		if wc, ok := c.(interface{ SetWeight(float64) }); ok {
			wc.SetWeight(w)
		}
	}
	return c, nil
}

// ConnectorsFromURLs 跳过无法解析的 url 并打印警告, 不会中止启动.
func ConnectorsFromURLs(urls []string) (cs []Connector) {
	for _, s := range urls {
		c, err := ConnectorFromURL(s)
		if err != nil {
			if ce := utils.CanLogWarn("skip peer"); ce != nil {
				ce.Write(zap.String("url", utils.Truncate(s, 128)), zap.Error(err))
			}
			continue
		}
		if ce := utils.CanLogInfo("forward connector added"); ce != nil {
			ce.Write(zap.String("name", c.Name()))
		}
		cs = append(cs, c)
	}
	return
}

// HostPort 取出并验证 url 中的主机与端口. 端口必须显式给出.
func HostPort(u *url.URL) (host string, port int, err error) {
	host = u.Hostname()
	if host == "" || !govalidator.IsHost(host) {
		return "", 0, utils.ConfigErr("invalid peer host", u.Host)
	}
	ps := u.Port()
	if !govalidator.IsPort(ps) {
		return "", 0, utils.ConfigErr("invalid peer port", u.Host)
	}
	port, _ = strconv.Atoi(ps)
	return
}

// TLSConfFromURL 读取 query 中的 sni, insecure, fingerprint, alpn. sni 默认为 host.
func TLSConfFromURL(u *url.URL, sniKey string) tlsLayer.Conf {
	q := u.Query()
	conf := tlsLayer.Conf{
		ServerName:  q.Get(sniKey),
		Fingerprint: q.Get("fingerprint"),
	}
	if conf.ServerName == "" {
		conf.ServerName = u.Hostname()
	}
	switch strings.ToLower(q.Get("insecure")) {
	case "1", "true":
		conf.Insecure = true
	}
	if alpn := q.Get("alpn"); alpn != "" {
		conf.AlpnList = strings.Split(alpn, ",")
	}
	return conf
}

// PeerTCPConnector 建立一个指向 url 中的主机的 基础连接. useTLS 时 tls配置取自 url 的 query.
// url 应已经通过 HostPort 的验证.
func PeerTCPConnector(name string, u *url.URL, useTLS bool, sniKey string) *WrappedConnector {
	var tc *tlsLayer.Client
	if useTLS {
		tc = tlsLayer.NewClient(TLSConfFromURL(u, sniKey))
	}
	host, port, _ := HostPort(u)
	return NewWrappedConnector(NewTCPConnector(name, tc), host, port)
}
