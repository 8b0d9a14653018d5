// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 请求与
SQLite 连接池两个维度。

# 概述

Collector 通过 promauto.With 注册到调用方提供的 Registerer（为 nil 时
使用默认 Registry），所有指标按 namespace 隔离。Collector 实现了
database.Recorder 接口，可通过 database.WithRecorder 注入连接池。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 连接池指标：借出结果计数与等待耗时、连接关闭原因计数、
    锁竞争重试计数、open/idle/in_use 连接数与等待者数量 Gauge。
*/
package metrics
