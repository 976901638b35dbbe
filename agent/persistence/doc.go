// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供协调记录（任务分配、工作交接、冲突）的持久化存储抽象，
以及 Agent / Task 仓储的参考实现。

# 概述

协调引擎产生三类记录：只追加的 WorkAssignment、带状态机的 WorkHandoff
与 ConflictResolution。本包通过统一的 CoordinationStore 接口保存它们，
使上层无需关心底层存储细节，同时支持从开发测试到分布式生产的平滑切换。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - CoordinationStore: 协调记录的保存、查询与按条件过滤。
  - ScopedCoordinationStore: 可以派生出按用户隔离视图（ForUserStore）的存储。

# 后端实现

  - Memory: 内存实现，默认后端，重启后数据丢失。
  - File: 基于文件的实现，原子写入 JSON 索引，适合单节点部署。
  - Redis: 基于 Redis 的实现，利用 Sorted Set 索引与 Pipeline 批量操作。
  - SQL: 基于 gorm 的实现，表结构由 internal/migration 管理。

# Agent 与 Task 仓储

  - MemoryAgentRepository / SQLAgentRepository: 提供 ReserveSlot / ReleaseSlot，
    原子地检查容量并修改活跃任务集合，消除"先检查后写入"的竞态。
    SQL 实现基于 version 列做乐观并发控制并有限次重试。
  - MemoryTaskRepository / SQLTaskRepository: 任务读取与保存。

所有实现都提供 ForUser(userID)，返回共享底层数据、按 OwnerID 过滤的视图。

# 使用方式

	store, err := persistence.NewCoordinationStore(config, db)
	scoped := store.ForUserStore("user-1")
*/
package persistence
