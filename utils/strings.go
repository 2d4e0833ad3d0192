package utils

import (
	"net"
	"strconv"
	"unicode/utf8"
)

// Truncate 截断s 使其不超过 n 字节, 被截断时末尾加上 "...".
// 用于日志中打印 来自网络的、长度不可控的内容.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// JoinHostPort 同 net.JoinHostPort, ipv6 会被加上方括号.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
