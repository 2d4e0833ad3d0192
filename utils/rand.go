package utils

import (
	"math/rand"
	"time"
)

func init() {
	//go1.20 之前 全局的 math/rand 默认种子为1, 每次启动都会得到同样的序列.
	// 所有的包都引用了 utils包, 所以在这里设置一次即可.
	rand.Seed(time.Now().UnixNano())
}
