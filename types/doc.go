// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供协调引擎的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent/handoff、
agent/conflict、agent/persistence、agent/coordination 等上层模块
提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Agent / AgentStatus：智能体记录（角色、专长、技能、活跃任务、容量、成功率）
  - Task / TaskRequirements：任务及其对角色、专长、技能的要求
  - WorkAssignment：只追加的任务分配记录
  - Error / ErrorCode：统一的协调错误类别（NotFound、AgentUnavailable、InvalidActor 等）

# 主要能力

  - 容量判断：Agent.IsAvailable / WorkloadPercentage / StartTask / ReleaseTask
  - 错误工具链：AsError / GetErrorCode / IsErrorCode / IsNotFound / IsRetryable
  - Context 传播：WithTraceID / WithUserID / WithRebalanceID
*/
package types
