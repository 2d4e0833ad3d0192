/*
Package vmess implements the client side of the legacy (md5 auth) vmess protocol as a proxy.Connector.

标准:  https://www.v2fly.org/developer/protocols/vmess.html

只支持 aes-128-gcm 加密 与 chunk stream 格式, 不支持 mux, 动态端口, 以及 其它的加密方式.

# Request

请求由三部分组成: 认证信息, 指令部分, 数据部分.

认证信息为 HMAC(md5, uuid, 时间戳), 时间戳为 8字节 大端 的 unix 秒数.

指令部分使用 AES-128-CFB 加密, key 为 md5(uuid + "c48619fe-8f02-49e0-b9e9-edf763e17e21"),
iv 为 md5(时间戳 重复4次). 其格式为:

	1字节  版本号, 为1
	16字节 数据加密 IV
	16字节 数据加密 Key
	1字节  响应认证 V
	1字节  选项, 为1 (chunk stream)
	1字节  高4位为 余量长度P, 低4位为 加密方式 (3, aes-128-gcm)
	1字节  保留, 为0
	1字节  指令, 为1 (tcp)
	2字节  端口
	1字节  地址类型, 为2 (域名)
	1字节  地址长度
	N字节  地址
	P字节  随机值
	4字节  F, 之前所有数据的 FNV1a-32 hash

数据部分为若干个 chunk, 每个 chunk 为 2字节 大端 长度 加上 AES-128-GCM 密文.
nonce 为 2字节 计数 加上 IV[2:12], 每个 chunk 计数加1. 明文为空的 chunk 表示数据结束.

# Response

响应头部为 4字节, 使用 AES-128-CFB 加密, key 为 md5(数据加密 Key), iv 为 md5(数据加密 IV).
明文须为 (V, 0, 0, 0). 其后的数据部分 key 与 iv 同样使用 md5 之后的值.
*/
package vmess

import (
	"crypto/md5"
)

const Name = "vmess"

const (
	Version byte = 1

	OptChunkStream byte = 1

	SecurityAES128GCM byte = 3

	CmdTCP byte = 1
)

const (
	lenSize   = 2
	chunkSize = 1 << 14 // 16384, 一个 chunk 的密文最大长度

	maxAddrLen = 255
)

var cmdKeySuffix = []byte("c48619fe-8f02-49e0-b9e9-edf763e17e21")

// GetKey 返回指令部分的加密 key.
func GetKey(uuid [16]byte) (key [16]byte) {
	h := md5.New()
	h.Write(uuid[:])
	h.Write(cmdKeySuffix)
	copy(key[:], h.Sum(nil))
	return
}
