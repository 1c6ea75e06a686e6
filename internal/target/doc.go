// Package target 封装虚拟用户对被测应用发起的全部 HTTP 调用。
//
// 除存在性探测外，每次调用都会计时并生成一条 types.Metric 写入 Sink。
// 所有调用共享同一个 fasthttp.Client 连接池。
package target
