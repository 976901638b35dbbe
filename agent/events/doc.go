// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 events 定义协调引擎的领域事件及事件总线实现。

# 概述

事件集合是封闭的：Event 接口带有未导出的标记方法，只有本包中的
八种事件可以实现它。所有事件通过唯一的 Bus.Publish 入口发布，
发布失败会返回给调用方，而不是被静默丢弃。

# 事件

  - AgentAssigned：任务分配给 Agent
  - WorkHandoffRequested：发起交接
  - WorkHandoffAccepted：交接被接受
  - WorkHandoffRejected：交接被拒绝
  - ConflictDetected：检测到冲突
  - ConflictResolved：冲突已解决
  - AgentStatusBroadcast：Agent 状态广播
  - AgentWorkloadRebalanced：负载再平衡完成

# 总线实现

  - MemoryBus：进程内同步总线，按订阅顺序调用处理器并合并错误，
    处理器 panic 会被恢复并转换为错误
  - RedisBus：基于 Redis Pub/Sub，事件以 JSON 信封（Envelope）传输
  - FanoutBus：同时发布到多个总线

# 编解码

Encode / Decode 负责 Envelope 与具体事件之间的转换，
Decode 对所有事件类型做穷尽匹配，未知类型返回 ErrUnknownEventType。
*/
package events
