// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 store 提供 app_usage 与 app_list 两张表的仓储，是连接池的直接使用者。

每个方法都通过 database.Pool.ExecuteWithRetry 借出一个连接，
在该连接上绑定 GORM 执行查询，返回前归还连接；写锁冲突按连接池的
重试策略退避。闭包可能被重复执行，因此结果只在成功后写回调用方。

# 核心类型

  - UsageStore：使用记录的增删改查与按 (user, application_name, log_date) 合并时长的 Upsert。
  - AppStore：应用目录的增删改查、按自然键 Upsert、按名称/类型查询与 Summary 统计。
  - AnalyticsStore：只读统计（应用排行、平台统计、用户总计与排行、每日趋势），
    聚合在 SQLite 内用一条语句完成，Period 限定日期范围。
  - AppUsage、AppList：与迁移脚本一致的 GORM 模型。
  - Page：分页结果，带总数。

记录不存在返回 ErrNotFound，字段校验失败返回包装 ErrInvalid 的错误。
*/
package store
