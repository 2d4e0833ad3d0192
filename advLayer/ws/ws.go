/*Package ws implements websocket handshake and framing for upstream connectors.

Reference: https://datatracker.ietf.org/doc/html/rfc6455

gobwas/ws 只负责握手与帧头的编解码, 帧的读写由本包自己完成. 客户端发出的帧都是 masked,
服务端发来的帧不带 mask.

一个帧头的结构如下:

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-------+-+-------------+-------------------------------+
	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
	| |1|2|3|       |K|             |                               |
	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +

payload 不超过 125 时长度直接放在 7位中, 不超过 65535 时用 16位, 否则用 64位.
*/
package ws

import (
	"errors"
	"io"

	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/gobwas/ws"
)

// 我们不会发出这么大的帧, 收到则认为对端有问题
const MaxFrameLen = 16 * 1024 * 1024

func writeFrame(w io.Writer, op ws.OpCode, payload []byte, masked bool) error {
	h := ws.Header{
		Fin:    true,
		OpCode: op,
		Length: int64(len(payload)),
	}

	buf := utils.GetBuf()
	defer utils.PutBuf(buf)
	buf.Grow(ws.MaxHeaderSize + len(payload))

	if masked {
		h.Masked = true
		h.Mask = ws.NewMask()
	}
	if err := ws.WriteHeader(buf, h); err != nil {
		return err
	}
	start := buf.Len()
	buf.Write(payload)
	if masked {
		//只对拷贝进行mask, 不修改调用者的数据
		ws.Cipher(buf.Bytes()[start:], h.Mask, 0)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func readFrame(r io.Reader) (h ws.Header, payload []byte, err error) {
	h, err = ws.ReadHeader(r)
	if err != nil {
		return h, nil, classifyReadErr(err)
	}
	if h.Length > MaxFrameLen || h.Length < 0 {
		return h, nil, utils.ProtocolErr("ws frame too large", h.Length)
	}
	payload = make([]byte, h.Length)
	if _, err = io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return h, nil, classifyReadErr(err)
	}
	if h.Masked {
		ws.Cipher(payload, h.Mask, 0)
	}
	return
}

// 帧边界上的 EOF 原样返回, 表示对端关闭了连接.
func classifyReadErr(err error) error {
	switch {
	case err == io.EOF:
		return io.EOF
	case errors.Is(err, ws.ErrHeaderLengthMSB), errors.Is(err, ws.ErrHeaderLengthUnexpected):
		return utils.ProtocolErr("bad ws frame header", err.Error())
	}
	return utils.TransportErr("read ws frame", err)
}

func closeFrameBody() []byte {
	return ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
}
