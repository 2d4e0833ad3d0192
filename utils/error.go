package utils

import (
	"errors"
	"fmt"
)

var ErrWrongParameter = errors.New("wrong parameter")

// 错误的三大类. 一个连接上出现的错误, 最终一定可以用 errors.Is 归到其中一类.
var (
	// 对端发来的 socks5/http/websocket/vmess 数据格式不对, 或者状态行不符合预期. 对该连接致命, 不重试.
	ErrProtocol = errors.New("protocol error")

	// 拨号被拒, 连接被重置, 管道破裂 等.
	ErrTransport = errors.New("transport error")

	// 规则行写错了, url 解析不了 等. 只记录并跳过该项.
	ErrConfig = errors.New("configuration error")
)

// ErrInErr 很适合一个err包含另一个err，并且提供附带数据的情况.
type ErrInErr struct {
	ErrDesc   string
	ErrDetail error
	Data      any
}

func (e ErrInErr) Error() string {
	return e.String()
}

func (e ErrInErr) Unwrap() error {
	return e.ErrDetail
}

func (e ErrInErr) Is(err error) bool {
	return e.ErrDetail == err
}

func (e ErrInErr) String() string {
	if e.Data != nil {
		if e.ErrDetail != nil {
			return fmt.Sprintf("%s : %s, Data: %v", e.ErrDesc, e.ErrDetail.Error(), e.Data)
		}
		return fmt.Sprintf("%s , Data: %v", e.ErrDesc, e.Data)
	}
	if e.ErrDetail != nil {
		return fmt.Sprintf("%s : %s", e.ErrDesc, e.ErrDetail.Error())
	}
	return e.ErrDesc
}

func ProtocolErr(desc string, data any) error {
	return ErrInErr{ErrDesc: desc, ErrDetail: ErrProtocol, Data: data}
}

func ConfigErr(desc string, data any) error {
	return ErrInErr{ErrDesc: desc, ErrDetail: ErrConfig, Data: data}
}

// TransportErr 把网络层返回的err 归类为 ErrTransport. 若 err 已经被归类过, 则原样返回.
func TransportErr(desc string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProtocol) || errors.Is(err, ErrTransport) {
		return err
	}
	return transportErr{desc: desc, err: err}
}

// 同时 Unwrap 到 ErrTransport 和 原始错误, 这样 errors.Is(err, io.EOF) 之类的判断依然有效.
type transportErr struct {
	desc string
	err  error
}

func (e transportErr) Error() string {
	return e.desc + " : " + e.err.Error()
}

func (e transportErr) Unwrap() error { return e.err }

func (e transportErr) Is(target error) bool {
	return target == ErrTransport
}
