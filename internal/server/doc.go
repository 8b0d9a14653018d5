// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭、关闭钩子与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Run/OnShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小
    与优雅关闭超时，可由 config.ServerConfig 转换得到。

# 关闭顺序

Shutdown 先排空 HTTP 请求，再按注册顺序执行 OnShutdown 钩子。
appusage 用它在最后一个请求结束后关闭数据库连接池并刷新遥测数据，
所有步骤共用 ShutdownTimeout。
*/
package server
