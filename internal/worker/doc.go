// Package worker 实现负载测试的工作节点。
//
// 工作节点接收主节点下发的 start/stop/reset 命令，按爬坡速率在有界执行池中
// 启动虚拟用户，并周期性地把本地产生的指标批量推送给主节点。
// 每次任务的爬坡计时器、截止计时器、指标推送与执行池都归属同一个可取消的
// 任务作用域，停止或重启任务时会整体回收。
package worker
