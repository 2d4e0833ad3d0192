package proxy

import (
	"go.uber.org/atomic"
)

const (
	WeightInitial = 10.0
	WeightMinimal = 1.0
	WeightMaximal = 100.0

	WeightIncreaseStep = 1.0
	WeightDecreaseStep = 1.0
)

// Base 实现 Connector 的名称与权重部分, 供各个 Connector 嵌入.
// 使用前须调用 InitBase.
type Base struct {
	name   string
	weight atomic.Float64
}

func (b *Base) InitBase(name string) {
	b.name = name
	b.weight.Store(WeightInitial)
}

func (b *Base) Name() string { return b.name }

func (b *Base) Weight() float64 { return b.weight.Load() }

func (b *Base) IncreaseWeight() { b.adjustWeight(WeightIncreaseStep) }

func (b *Base) DecreaseWeight() { b.adjustWeight(-WeightDecreaseStep) }

// 读-改-写 必须是原子的, 否则并发的会话会丢失更新.
func (b *Base) adjustWeight(delta float64) {
	for {
		old := b.weight.Load()
		nw := old + delta
		if nw > WeightMaximal {
			nw = WeightMaximal
		} else if nw < WeightMinimal {
			nw = WeightMinimal
		}
		if b.weight.CAS(old, nw) {
			return
		}
	}
}

// SetWeight 设置权重, 超出范围的值会被截断. 用于配置中指定的初始权重.
func (b *Base) SetWeight(w float64) {
	if w > WeightMaximal {
		w = WeightMaximal
	} else if w < WeightMinimal {
		w = WeightMinimal
	}
	b.weight.Store(w)
}
