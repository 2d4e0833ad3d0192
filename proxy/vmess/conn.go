package vmess

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/e1732a364fed/forwardproxy/netLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
)

// Conn 是一个 vmess 连接的客户端, 实现 netLayer.Stream. pending 中为已解密但还没被读走的数据.
type Conn struct {
	netLayer.Pending

	inner netLayer.Stream

	wmu sync.Mutex
	w   *cryptor
	r   *cryptor

	respKey   []byte
	respIV    []byte
	rv        byte
	validated bool
	eof       bool
}

func newConn(h *requestHeader) *Conn {
	rkey := md5.Sum(h.key[:])
	riv := md5.Sum(h.iv[:])
	return &Conn{
		w:       newCryptor(h.key[:], h.iv[:]),
		r:       newCryptor(rkey[:], riv[:]),
		respKey: rkey[:],
		respIV:  riv[:],
		rv:      h.rv,
	}
}

// 第一次读取时验证响应头部
func (c *Conn) validateResponse() error {
	b := make([]byte, 4)
	if _, err := io.ReadFull(c.inner, b); err != nil {
		if errors.Is(err, io.EOF) {
			return utils.TransportErr("vmess server closed before response", io.ErrUnexpectedEOF)
		}
		return utils.TransportErr("read vmess response", err)
	}

	block, _ := aes.NewCipher(c.respKey)
	cipher.NewCFBDecrypter(block, c.respIV).XORKeyStream(b, b)

	if b[0] != c.rv || b[1] != 0 || b[2] != 0 || b[3] != 0 {
		return utils.ProtocolErr("unexpected vmess response header", b)
	}
	c.validated = true
	return nil
}

func (c *Conn) readChunk() ([]byte, error) {
	lb := make([]byte, lenSize)
	if _, err := io.ReadFull(c.inner, lb); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, utils.TransportErr("read vmess chunk", err)
	}
	l := int(binary.BigEndian.Uint16(lb))
	ct := make([]byte, l)
	if _, err := io.ReadFull(c.inner, ct); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, utils.TransportErr("read vmess chunk", err)
	}
	return c.r.open(ct)
}

func (c *Conn) Read(p []byte) (int, error) {
	if n, ok := c.ReadPending(p); ok {
		return n, nil
	}
	if c.eof {
		return 0, io.EOF
	}
	if !c.validated {
		if err := c.validateResponse(); err != nil {
			return 0, err
		}
	}

	plain, err := c.readChunk()
	if err != nil {
		return 0, err
	}
	if len(plain) == 0 {
		c.eof = true
		return 0, io.EOF
	}
	n := copy(p, plain)
	c.Unread(plain[n:])
	return n, nil
}

// ReadBuffered 返回 本层已解密的数据, 以及 内层缓存中 所有完整 chunk 解密后的数据;
// 不完整的 chunk 会被放回内层. 不会进行任何io.
//
// 响应头部还没有验证时, 只返回本层的数据.
func (c *Conn) ReadBuffered() []byte {
	out := c.Pending.ReadBuffered()
	if !c.validated || c.eof {
		return out
	}

	raw := c.inner.ReadBuffered()
	for len(raw) >= lenSize {
		l := int(binary.BigEndian.Uint16(raw))
		if len(raw) < lenSize+l {
			break
		}
		plain, err := c.r.open(raw[lenSize : lenSize+l])
		if err != nil {
			//留给下一次 Read 报告错误
			break
		}
		raw = raw[lenSize+l:]
		if len(plain) == 0 {
			c.eof = true
			break
		}
		out = append(out, plain...)
	}
	c.inner.Unread(raw)
	return out
}

func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.inner.Write(c.w.seal(nil, p)); err != nil {
		return 0, utils.TransportErr("write vmess chunk", err)
	}
	return len(p), nil
}

// CloseWrite 发送一个空 chunk. vmess 的数据部分没有独立的半关闭, 所以不关闭内层的写.
func (c *Conn) CloseWrite() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if _, err := c.inner.Write(c.w.seal(nil, nil)); err != nil {
		return utils.TransportErr("write vmess eof chunk", err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.inner.Close()
}
