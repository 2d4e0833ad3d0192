package vmess

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/md5"
	"encoding/binary"
	"hash/fnv"
	"time"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
)

// requestHeader 为每次拨号新生成, 不会被重复使用.
type requestHeader struct {
	key [16]byte
	iv  [16]byte
	rv  byte

	addr    string
	port    int
	padding []byte //不超过 15 字节
}

// 不含 认证信息 的明文指令部分, 末尾带 FNV1a-32.
func (h *requestHeader) marshal() []byte {
	buf := utils.GetBuf()
	defer utils.PutBuf(buf)

	buf.WriteByte(Version)
	buf.Write(h.iv[:])
	buf.Write(h.key[:])
	buf.WriteByte(h.rv)
	buf.WriteByte(OptChunkStream)
	buf.WriteByte(byte(len(h.padding))<<4 | SecurityAES128GCM)
	buf.WriteByte(0)
	buf.WriteByte(CmdTCP)
	binary.Write(buf, binary.BigEndian, uint16(h.port))
	buf.WriteByte(netLayer.AtypDomain)
	buf.WriteByte(byte(len(h.addr)))
	buf.WriteString(h.addr)
	buf.Write(h.padding)

	fnv1a := fnv.New32a()
	fnv1a.Write(buf.Bytes())
	buf.Write(fnv1a.Sum(nil))

	return append([]byte(nil), buf.Bytes()...)
}

func timestampBytes(t time.Time) []byte {
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(t.UTC().Unix()))
	return ts
}

// 认证信息 HMAC(md5, uuid, 时间戳)
func authInfo(uuid [16]byte, ts []byte) []byte {
	h := hmac.New(md5.New, uuid[:])
	h.Write(ts)
	return h.Sum(nil)
}

// 指令部分的 iv
func headerIV(ts []byte) []byte {
	h := md5.New()
	for i := 0; i < 4; i++ {
		h.Write(ts)
	}
	return h.Sum(nil)
}

// sealRequest 返回 认证信息 加上 加密后的指令部分.
func sealRequest(uuid [16]byte, cmdKey [16]byte, h *requestHeader, t time.Time) []byte {
	ts := timestampBytes(t)

	plain := h.marshal()

	block, _ := aes.NewCipher(cmdKey[:])
	cipher.NewCFBEncrypter(block, headerIV(ts)).XORKeyStream(plain, plain)

	return append(authInfo(uuid, ts), plain...)
}
