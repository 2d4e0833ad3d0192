package utils

import (
	"flag"
)

// GetGivenFlags 返回命令行上显式给出的flag.
func GetGivenFlags() (m map[string]*flag.Flag) {
	m = make(map[string]*flag.Flag)
	flag.Visit(func(f *flag.Flag) {
		m[f.Name] = f
	})
	return
}

var GivenFlags map[string]*flag.Flag

// ParseFlags 调用 flag.Parse, 并把给出的flag存入 GivenFlags.
func ParseFlags() {
	flag.Parse()
	GivenFlags = GetGivenFlags()
}
