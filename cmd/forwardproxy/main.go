package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/e1732a364fed/forwardproxy/machine"
	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/proxy"
	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/pkg/profile"
	"go.uber.org/zap"

	_ "github.com/e1732a364fed/forwardproxy/proxy/http"
	_ "github.com/e1732a364fed/forwardproxy/proxy/vmess"
)

const (
	defaultConfFn  = "forwardproxy.toml"
	defaultRulesFn = "rules.txt"
)

// 可重复的 string flag
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(s string) error {
	*l = append(*l, s)
	return nil
}

var (
	configFileName string
	debugMode      bool
	startMProf     bool
	printVer       bool

	listenURL   string
	peerURLs    stringList
	defaultRule string
	rulesFile   string

	apiConf proxy.ApiServerConf
)

func init() {
	flag.StringVar(&configFileName, "c", defaultConfFn, "config file name")
	flag.BoolVar(&debugMode, "d", false, "debug mode, same as -ll 0")
	flag.BoolVar(&startMProf, "mp", false, "memory pprof")
	flag.BoolVar(&printVer, "v", false, "print version and exit")

	flag.StringVar(&listenURL, "s", machine.DefaultListenAddr, "listen address, accepting both socks5 and http")
	flag.Var(&peerURLs, "p", "peer url, can be given multiple times. schemes: "+strings.Join(proxy.SupportedSchemes(), ","))
	flag.StringVar(&defaultRule, "D", "direct", "default rule: block, direct or forward")
	flag.StringVar(&rulesFile, "r", defaultRulesFn, "rules file")

	flag.StringVar(&apiConf.Addr, "sa", "", "api Server listen address, e.g. 127.0.0.1:48345; empty means no api server")
	flag.BoolVar(&apiConf.PlainHttp, "sunsafe", false, "if given, api Server will use http instead of https")
	flag.StringVar(&apiConf.AdminPass, "sap", "", "api Server admin password, but won't be used if it's empty")
}

func main() {
	os.Exit(mainFunc())
}

func mainFunc() (result int) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			if ce := utils.CanLogErr("Captured panic!"); ce != nil {
				ce.Write(zap.Any("err:", r), zap.String("stacktrace", stack))
			}
			log.Println(stack) //zap 会转义多行字符串, 单独打印可读性更好
			result = -3
		}
	}()

	utils.ParseFlags()

	printVersion()
	if printVer {
		return
	}

	if startMProf {
		//若不使用 NoShutdownHook, 则 我们ctrl+c退出时不会产生 pprof文件
		p := profile.Start(profile.MemProfile, profile.MemProfileRate(1), profile.NoShutdownHook)
		defer p.Stop()
	}

	var conf proxy.StandardConf
	if _, err := os.Stat(configFileName); err == nil {
		conf, err = proxy.LoadTomlConfFile(configFileName)
		if err != nil {
			log.Println("can not load config file", configFileName, err)
			return -1
		}
	} else if utils.GivenFlags["c"] != nil {
		log.Printf("-c provided but %q doesn't exist", configFileName)
		return -1
	}

	mconf, def, peers := mergeConf(&conf)

	utils.InitLog()

	table, err := netLayer.LoadRulesFile(mconf.RulesFile)
	if err != nil {
		if ce := utils.CanLogErr("load rules failed, using default rule only"); ce != nil {
			ce.Write(zap.Error(err))
		}
	}

	forwards := proxy.ConnectorsFromURLs(peers)
	for _, c := range forwards {
		if ce := utils.CanLogInfo("forward connector"); ce != nil {
			ce.Write(zap.String("name", c.Name()), zap.Float64("weight", c.Weight()))
		}
	}

	m := machine.New(mconf, proxy.NewDispatcher(netLayer.NewRuleMatcher(def, table), forwards))
	if err := m.Start(); err != nil {
		if ce := utils.CanLogErr("start failed"); ce != nil {
			ce.Write(zap.Error(err))
		}
		return -1
	}

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP) //os.Kill cannot be trapped

	for sig := range osSignals {
		if sig != syscall.SIGHUP {
			break
		}
		if err := m.ReloadRules(); err != nil {
			if ce := utils.CanLogErr("reload rules failed, keeping old rules"); ce != nil {
				ce.Write(zap.Error(err))
			}
		}
	}

	utils.Info("Program got close signal.")
	m.Stop()
	m.PrintAllState(os.Stdout)
	return
}

// mergeConf 合并配置文件与命令行, 命令行中显式给出的参数优先.
func mergeConf(conf *proxy.StandardConf) (mc machine.Conf, def netLayer.Rule, peers []string) {
	if appConf := conf.App; appConf != nil {
		if appConf.LogLevel != nil && utils.GivenFlags["ll"] == nil {
			utils.LogLevel = *appConf.LogLevel
		}
		if appConf.LogFile != "" && utils.GivenFlags["lf"] == nil {
			utils.LogOutFileName = appConf.LogFile
		}
	}
	if debugMode && utils.GivenFlags["ll"] == nil {
		utils.LogLevel = utils.Log_debug
	}

	mc = machine.LoadConf(conf)
	if mc.ListenAddr == "" || utils.GivenFlags["s"] != nil {
		mc.ListenAddr = listenURL
	}
	if mc.RulesFile == "" || utils.GivenFlags["r"] != nil {
		mc.RulesFile = rulesFile
	}
	if utils.GivenFlags["sa"] != nil {
		mc.ApiServer.Addr = apiConf.Addr
	}
	if utils.GivenFlags["sunsafe"] != nil {
		mc.ApiServer.PlainHttp = apiConf.PlainHttp
	}
	if utils.GivenFlags["sap"] != nil {
		mc.ApiServer.AdminPass = apiConf.AdminPass
	}

	defStr := defaultRule
	if r := conf.Rules; r != nil && r.Default != "" && utils.GivenFlags["D"] == nil {
		defStr = r.Default
	}
	def, err := netLayer.ParseRule(defStr)
	if err != nil {
		fmt.Println(err, ", using direct")
		def = netLayer.Direct
	}

	peers = peerURLs
	if len(peers) == 0 {
		peers = conf.PeerURLs()
	}
	return
}
