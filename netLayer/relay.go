package netLayer

import (
	"errors"
	"io"
	"sync"

	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

// RelayResult 记录一次 Relay 的结果. Up 为 a->b 的字节数, Down 为 b->a 的字节数.
type RelayResult struct {
	Up, Down int64
	Err      error
}

// Exchanged 表示 b 一侧 是否返回过数据. 只向 b 写入而没有收到任何回应 不算交换过数据,
// 比如 对端在握手之后直接关闭 的情况.
func (r RelayResult) Exchanged() bool {
	return r.Down > 0
}

// Relay 在 a 和 b 之间双向转发数据, 阻塞直到两个方向都结束.
//
// 每个方向读到 EOF 后, 对另一端调用 CloseWrite 然后停止, 并不关闭.
// 任一方向出错时, 立即关闭两端, 使另一方向的阻塞读返回.
// 两个方向都结束后, 两端一定会被关闭; 返回的错误是第一个被观察到的错误,
// 关闭时产生的错误只在之前没有错误时才返回.
func Relay(a, b Stream) (r RelayResult) {
	var (
		mu       sync.Mutex
		firstErr error
		once     sync.Once
		wg       sync.WaitGroup
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()

		once.Do(func() {
			a.Close()
			b.Close()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		r.Up, err = pump(b, a)
		if err != nil {
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		r.Down, err = pump(a, b)
		if err != nil {
			fail(err)
		}
	}()
	wg.Wait()

	aErr := a.Close()
	bErr := b.Close()

	r.Err = firstErr
	if r.Err == nil {
		if aErr != nil {
			r.Err = aErr
		} else {
			r.Err = bErr
		}
	}

	if ce := utils.CanLogDebug("relay end"); ce != nil {
		ce.Write(zap.Int64("up", r.Up), zap.Int64("down", r.Down), zap.Error(r.Err))
	}
	return
}

// pump 从 src 读, 写入 dst, 直到 src 返回 EOF, 然后对 dst 半关闭.
func pump(dst, src Stream) (n int64, err error) {
	buf := utils.GetPacket()
	defer utils.PutPacket(buf)

	for {
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			n += int64(nw)
			if ew != nil {
				return n, utils.TransportErr("relay write", ew)
			}
			if nw != nr {
				return n, utils.TransportErr("relay write", io.ErrShortWrite)
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) {
				return n, utils.TransportErr("relay close write", dst.CloseWrite())
			}
			return n, utils.TransportErr("relay read", er)
		}
	}
}
