// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handoff 提供智能体间的工作交接协议。

# 概述

当一个 Agent 需要把进行中的任务移交给另一个 Agent 时，由来源方发起
WorkHandoff，记录已完成项、剩余项与交接说明，再由接收方确认或拒绝。

# 核心模型

  - WorkHandoff：交接记录，包含来源/目标 Agent、任务、工作摘要与状态
  - Request：发起交接所需的字段，由 New 校验后生成 pending 记录
  - HandoffStatus：pending -> accepted | rejected，终态不可再变更

# 规则

  - 来源与目标 Agent 必须不同
  - 只有目标 Agent 可以接受或拒绝（否则返回 INVALID_ACTOR）
  - 拒绝必须附带原因
  - 非 pending 状态的交接再次响应返回 INVALID_TRANSITION

# 与其他包协同

agent/coordination 负责交接的存储、事件发布与接受后的任务重新分配，
本包只负责实体本身的状态机约束。
*/
package handoff
