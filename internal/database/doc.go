// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 为 sql 协调存储与迁移提供基于 GORM 的连接管理。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB、Ping、
    GetStats、Close 与事务辅助方法。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与健康检查间隔。
  - StatsReporter：健康检查后接收连接池统计，用于写入 Prometheus。

# 主要能力

  - OpenDialector / Open：按驱动名（postgres、mysql、sqlite）选择
    GORM 方言并打开连接池；sqlite 通过 modernc 纯 Go 驱动打开，
    连接数固定为 1。
  - StartHealthCheck：后台定时探活，Close 时等待退出。
  - WithTransactionRetry：死锁、序列化失败与 SQLITE_BUSY 等瞬时
    故障下指数退避重试。
*/
package database
