// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的应用目录读缓存。

# 概述

本包封装 go-redis 客户端。store.AppStore 通过它缓存按 AppID 读取的
应用条目与目录统计，写操作后按键失效。缓存不可用时读路径回落到 SQLite，
不影响正确性。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端，提供 Get/Set/Delete、
    GetJSON/SetJSON、Ping 与 GetStats。所有键自动加上 KeyPrefix。
  - Config：地址、密码、键前缀、默认 TTL、连接池大小、TLS 开关与健康检查间隔。
  - Stats：由 INFO 与 DBSIZE 解析出的命中、未命中、键数量、内存与连接数。

# 主要能力

  - TLS：TLSEnabled 时使用 tlsutil.ClientConfig 加固连接。
  - 健康检查：后台定时 Ping，Close 时停止并等待循环退出。
  - 错误语义：ErrCacheMiss 与 IsCacheMiss 区分未命中，ErrClosed 表示已关闭。
*/
package cache
