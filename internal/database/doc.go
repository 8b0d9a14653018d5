// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供单写者嵌入式 SQLite 数据库的连接池管理，负责
Schema 引导、连接句柄的借出与归还、锁竞争重试以及有序关闭。

# 概述

Pool 持有一个文件型 SQLite 数据库的全部原生连接。初始化时执行
Schema 引导并预创建 MinIdle 个连接；借出优先复用空闲连接，未达
MaxConnections 时新建，否则按 FIFO 排队等待，超过 BusyTimeout 返回
*PoolExhaustedError。Close 将状态切换为 Draining，立即关闭空闲连接、
唤醒等待者，并在 GracePeriod 内等待借出的连接归还。

# 生命周期

	Uninitialized → Initializing → (Failed) → Ready → Draining → Closed

初始化失败时进入 Failed，之后的 Acquire 返回同一个错误；再次调用
Initialize 时保持 Failed，成功后进入 Ready。状态从不回退。

每个新连接依次执行 busy_timeout（取自 BusyTimeout）与 Config.Pragmas。

# 核心类型

  - Pool：连接池管理器，提供 Initialize/Acquire/Release/WithConn/
    WithTx/ExecuteWithRetry/Close/Stats。
  - Conn：连接句柄，独占一个 *sql.Conn，可通过 Gorm() 绑定 GORM。
  - Config：连接池配置，DefaultConfig 提供默认值。
  - Recorder：指标记录接口，由 metrics 包实现。

# 错误分类

  - ErrSchemaInit / *SchemaInitError：Schema 引导失败。
  - ErrConnection / *ConnectionError：数据库文件无法打开。
  - ErrPoolExhausted / *PoolExhaustedError：等待超时。
  - ErrPoolClosed：连接池已关闭。
  - ErrDatabaseLocked / *DatabaseLockedError：锁竞争重试耗尽。
  - ErrDatabase / *DatabaseError：其他底层错误，不重试。
*/
package database
