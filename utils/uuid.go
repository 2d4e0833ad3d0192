package utils

import (
	"encoding/hex"
)

const UUID_BytesLen = 16

// StrToUUID 解析 8-4-4-4-12 形式的 uuid 字符串, 不区分大小写. 错误为 ErrConfig 类型.
func StrToUUID(s string) (uuid [UUID_BytesLen]byte, err error) {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return uuid, ConfigErr("invalid UUID Str", s)
	}
	hexStr := s[:8] + s[9:13] + s[14:18] + s[19:23] + s[24:]
	if _, e := hex.Decode(uuid[:], []byte(hexStr)); e != nil {
		return uuid, ConfigErr("invalid UUID Str", s)
	}
	return
}
