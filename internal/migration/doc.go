// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理协调存储（agents、tasks、work_assignments、
work_handoffs、conflict_resolutions）的数据库 Schema，支持
PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在二进制中，列名与
agent/persistence 中 GORM 模型的蛇形命名保持一致。SQLite 使用
纯 Go 的 modernc 驱动，无需 cgo。

# 核心类型

  - Migrator / DefaultMigrator：Up、Down、Steps、Force、Version、
    Status、Info。ctx 取消时通过 GracefulStop 中断迁移。
  - NewMigratorFromDatabaseConfig：从 config.DatabaseConfig 构建。
  - CLI：为 agentcoord migrate 子命令提供格式化输出。
*/
package migration
