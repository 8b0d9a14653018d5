// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 appusage 服务端程序入口。

# 概述

cmd/appusage 装配配置、zap 日志、OpenTelemetry、Prometheus 指标与
SQLite 连接池，对外暴露健康检查与指标端点，并提供迁移与统计子命令。

# 子命令

  - serve：初始化连接池（失败即退出），启动 HTTP 服务
  - migrate：up / down / status / version / info
  - summary：输出应用目录统计与指定用户的使用时长
  - ingest：按 worker 池并发批量 Upsert 使用记录
  - analytics：top-apps / platforms / user-total / user-top-apps / daily 统计报表
  - version、health

# 端点

  - /health、/ready：连接池 Ready 且探活成功返回 200，否则 503，附带池统计
  - /healthz：进程存活
  - /version：构建信息
  - /metrics：Prometheus 指标（metrics.enabled 时）

# 关闭顺序

收到 SIGINT/SIGTERM 后先停止 HTTP，再关闭连接池与缓存，最后刷新遥测数据。
*/
package main
