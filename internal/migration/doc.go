// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 负责 app_usage 数据库的 Schema 引导，基于 golang-migrate
与内嵌的 SQLite 迁移文件实现。

# 概述

迁移文件通过 embed.FS 内嵌在二进制中，所有建表与建索引语句均为
CREATE ... IF NOT EXISTS，因此对已有数据库重复执行不会产生任何变化。
连接池在初始化阶段调用 Bootstrap 完成 Schema 准备，失败时整个池保持
未初始化状态。

# 核心接口与类型

  - Bootstrap：在调用方提供的 *sql.DB 上执行全部待应用迁移，
    ErrNoChange 视为成功，且不会关闭该连接。
  - Migrator：迁移器接口，定义 Up/Down/Version/Status/Info/Close。
  - DefaultMigrator：基于 golang-migrate sqlite3 驱动的默认实现，
    NewMigrator 借用外部连接，OpenMigrator 自行打开并拥有连接。
  - MigrationStatus / MigrationInfo：迁移状态与摘要信息。
  - CLI：`appusage migrate` 子命令的格式化输出层。

# 数据表

  - app_usage：应用使用记录，按 user、log_date、application_name 建索引。
  - app_list：应用清单，按 (application_name, type, version) 建复合索引。
*/
package migration
