package target

import (
	"errors"
	"fmt"
)

// ErrNoResponse 表示请求未得到任何 HTTP 响应（连接失败、超时或被取消）。
var ErrNoResponse = errors.New("no response from target")

// StatusError 表示被测应用返回了错误状态码。
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.Code)
}

// IsStatusError 判断 err 是否为 StatusError。
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
