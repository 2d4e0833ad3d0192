package main

import (
	"fmt"
	"runtime"
)

var Version string //版本号由 ldflags 指定

const desc = "socks5/http forward proxy with weighted upstreams"

func printVersion() {
	fmt.Printf("===============================\nforwardproxy %v (%v), %v %v %v\n", Version, desc, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
