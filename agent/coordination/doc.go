// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 coordination 实现多 Agent 工作协调引擎。

# 概述

Orchestrator 负责在一组 Agent 之间分配任务、处理工作交接、
记录并解决冲突，以及在 Agent 负载失衡时发起再平衡。
任务与 Agent 的生命周期由外部仓储负责，本包只读取它们，
并修改 Agent 的活跃任务集合与状态字段。

# 核心操作

  - FindBestAgentForTask / RankAgentsForTask：按适配度为任务挑选 Agent
  - AssignAgentToTask：原子占用 Agent 容量并记录分配
  - RequestWorkHandoff / AcceptHandoff / RejectHandoff：交接状态机
  - DetectAndResolveConflict / ResolveConflict：冲突记录与解决
  - RebalanceWorkload：从过载 Agent 向空闲 Agent 发起交接
  - GetAgentWorkload / BroadcastAgentStatus / ReleaseTask：负载查询与状态维护

# 评分

Scorer 按权重组合角色匹配、专长重叠（Jaccard）、技能对齐、
可用性与历史表现五项得分，结果归一化到 [0,1]。
低于接受阈值（默认 0.5）时视为没有合适的 Agent。

# 并发

容量检查与占用通过 SlotReserver 原子完成；未提供时在进程内按 Agent
加锁。同一交接或冲突的响应按记录 ID 串行化。

# 用户隔离

WithUser 返回绑定用户的 Orchestrator，读写都经过 Dependencies
中 Scope* 函数提供的用户视图，新建记录携带 OwnerID。

# 定时再平衡

RebalanceScheduler 按固定间隔并发处理配置的项目，
并支持限流的手动触发。
*/
package coordination
