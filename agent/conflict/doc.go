// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 conflict 定义多个 Agent 在同一任务上产生冲突时的检测与解决记录。

# 核心模型

  - ConflictResolution：冲突记录，包含冲突类型、涉及的 Agent 集合、
    关联任务、描述与解决信息
  - ConflictType：resource_contention、duplicate_work、task_execution、
    priority、capability、decision
  - Strategy：解决策略，内置 consensus、hierarchical、mediation、
    compromise、fallback、first_come_first_served、reassign，
    也接受任意非空自定义策略

# 状态机

detected -> resolved。已解决的冲突不可再次解决，重复调用 Resolve
返回 INVALID_TRANSITION。自动解决时 ResolvedBy 记为 "system"。
*/
package conflict
