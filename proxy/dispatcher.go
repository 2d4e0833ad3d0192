package proxy

import (
	"math/rand"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

// Dispatcher 根据规则为每个目标选择 Connector, 并根据连接结果调整转发 Connector 的权重.
//
// 建立之后 forwards 列表不再改变, 只有各个 Connector 的权重会变化, 所以可以被并发使用.
type Dispatcher struct {
	matcher *netLayer.RuleMatcher

	block    Connector
	direct   Connector
	forwards []Connector

	// 返回 [0,1) 的随机数, 测试中可以替换. 必须可以被并发调用.
	// 默认为全局的 rand.Float64, 其种子在 utils 包初始化时设置.
	Rand func() float64
}

// NewDispatcher 若 forwards 为空, 会自动添加一个 直连的 FORWARD Connector 并打印警告.
func NewDispatcher(matcher *netLayer.RuleMatcher, forwards []Connector) *Dispatcher {
	if len(forwards) == 0 {
		if ce := utils.CanLogWarn("no forward connector given, forward rules will connect directly"); ce != nil {
			ce.Write(zap.String("added", ForwardName))
		}
		forwards = []Connector{NewTCPConnector(ForwardName, nil)}
	}
	return &Dispatcher{
		matcher:  matcher,
		block:    NewNullConnector(BlockName),
		direct:   NewTCPConnector(DirectName, nil),
		forwards: forwards,
		Rand:     rand.Float64,
	}
}

func (d *Dispatcher) Forwards() []Connector {
	return d.forwards
}

func (d *Dispatcher) Matcher() *netLayer.RuleMatcher {
	return d.matcher
}

// Dispatch 不进行任何io, 不会失败.
func (d *Dispatcher) Dispatch(addr string, port int) Connector {
	rule := d.matcher.Match(addr)

	if ce := utils.CanLogDebug("dispatch"); ce != nil {
		ce.Write(zap.String("target", utils.JoinHostPort(addr, port)), zap.Stringer("rule", rule))
	}

	switch rule {
	case netLayer.Block:
		return d.block
	case netLayer.Direct:
		return d.direct
	}
	return d.ChooseForwardConnector()
}

// ChooseForwardConnector 按权重随机选择一个转发 Connector; 只有一个时直接返回它.
func (d *Dispatcher) ChooseForwardConnector() Connector {
	if len(d.forwards) == 1 {
		return d.forwards[0]
	}

	// 权重是并发变化的, 所以先取一份快照
	weights := make([]float64, len(d.forwards))
	var sum float64
	for i, c := range d.forwards {
		weights[i] = c.Weight()
		sum += weights[i]
	}

	r := d.Rand() * sum
	for i, w := range weights {
		if r < w {
			return d.forwards[i]
		}
		r -= w
	}
	return d.forwards[len(d.forwards)-1]
}

// IsForward 判断 c 是否为一个转发 Connector.
func (d *Dispatcher) IsForward(c Connector) bool {
	for _, f := range d.forwards {
		if f == c {
			return true
		}
	}
	return false
}

// Feedback 报告一次使用 c 的结果. 只有转发 Connector 的权重会被调整, block 和 direct 不受影响.
func (d *Dispatcher) Feedback(c Connector, ok bool) {
	if !d.IsForward(c) {
		return
	}
	if ok {
		c.IncreaseWeight()
	} else {
		c.DecreaseWeight()
	}

	if ce := utils.CanLogDebug("weight adjusted"); ce != nil {
		ce.Write(zap.String("connector", c.Name()), zap.Bool("ok", ok), zap.Float64("weight", c.Weight()))
	}
}
