package proxy

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/e1732a364fed/forwardproxy/utils"
)

type AppConf struct {
	LogLevel *int   `toml:"loglevel"` //需要为指针, 否则无法判断0到底是未给出的默认值还是 显式声明的0
	LogFile  string `toml:"logfile"`
}

type ListenConf struct {
	URL string `toml:"url"` //如 localhost:1080

	ProxyProtocol bool `toml:"proxy_protocol"`

	HandshakeTimeout int `toml:"handshake_timeout"` //秒, 0 则使用默认值
}

type RulesConf struct {
	Default string `toml:"default"` //block, direct 或 forward
	File    string `toml:"file"`
}

// ApiServerConf 为 状态查询 api 的配置. Addr 为空则不开启.
type ApiServerConf struct {
	Addr       string `toml:"addr"`
	PlainHttp  bool   `toml:"plain"` //为 false 时使用 https; 没有给出证书则使用随机证书
	CertFile   string `toml:"cert"`
	KeyFile    string `toml:"key"`
	PathPrefix string `toml:"prefix"` //默认 /api
	AdminPass  string `toml:"admin_pass"`
}

type PeerConf struct {
	URL string `toml:"url"`
}

// 标准配置，使用toml格式。
// toml：https://toml.io/cn/
// English: https://toml.io/en/
type StandardConf struct {
	App    *AppConf    `toml:"app"`
	Listen *ListenConf `toml:"listen"`
	Rules  *RulesConf  `toml:"rules"`

	ApiServer *ApiServerConf `toml:"api"`

	Peers []*PeerConf `toml:"peer"`
}

// PeerURLs 返回所有 peer 的 url, 忽略空的项.
func (sc *StandardConf) PeerURLs() (r []string) {
	for _, p := range sc.Peers {
		if p != nil && p.URL != "" {
			r = append(r, p.URL)
		}
	}
	return
}

func LoadTomlConfStr(str string) (c StandardConf, err error) {
	_, err = toml.Decode(str, &c)
	if err != nil {
		err = utils.ErrInErr{ErrDesc: "can't decode toml config", ErrDetail: utils.ErrConfig, Data: err.Error()}
	}
	return
}

func LoadTomlConfFile(fileNamePath string) (StandardConf, error) {
	bs, err := os.ReadFile(fileNamePath)
	if err != nil {
		return StandardConf{}, utils.ErrInErr{ErrDesc: "can't open config file", ErrDetail: utils.ErrConfig, Data: err.Error()}
	}
	return LoadTomlConfStr(string(bs))
}
