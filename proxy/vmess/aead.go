package vmess

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/e1732a364fed/forwardproxy/utils"
)

// cryptor 负责一个方向上 chunk 的加解密. 两端的计数必须同步, 所以不能容忍乱序.
type cryptor struct {
	aead  cipher.AEAD
	nonce []byte
	count uint16
}

// iv 须为 16字节, 只使用其中的 [2:12]
func newCryptor(key, iv []byte) *cryptor {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err) //key 总是 16字节
	}
	aead, _ := cipher.NewGCM(block)
	c := &cryptor{
		aead:  aead,
		nonce: make([]byte, aead.NonceSize()),
	}
	copy(c.nonce[2:], iv[2:12])
	return c
}

func (c *cryptor) nextNonce() []byte {
	binary.BigEndian.PutUint16(c.nonce[:2], c.count)
	c.count++
	return c.nonce
}

// 一个 chunk 最多能承载的明文长度
func (c *cryptor) maxPlainLen() int {
	return chunkSize - c.aead.Overhead()
}

// seal 把 plain 分成若干 chunk 加密, 追加到 dst 后面.
// plain 为空时 生成一个 表示数据结束的 空chunk.
func (c *cryptor) seal(dst, plain []byte) []byte {
	for {
		n := len(plain)
		if n > c.maxPlainLen() {
			n = c.maxPlainLen()
		}
		l := n + c.aead.Overhead()
		dst = append(dst, byte(l>>8), byte(l))
		dst = c.aead.Seal(dst, c.nextNonce(), plain[:n], nil)

		plain = plain[n:]
		if len(plain) == 0 {
			return dst
		}
	}
}

// open 解密一个 chunk 的密文 (不含长度). 失败时计数不变.
func (c *cryptor) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.Overhead() {
		return nil, utils.ProtocolErr("vmess chunk too short", len(ciphertext))
	}
	binary.BigEndian.PutUint16(c.nonce[:2], c.count)
	plain, err := c.aead.Open(nil, c.nonce, ciphertext, nil)
	if err != nil {
		return nil, utils.ProtocolErr("vmess chunk auth failed", err.Error())
	}
	c.count++
	return plain, nil
}
