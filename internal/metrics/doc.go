// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖协调引擎、
运维 HTTP 端点与存储基础设施。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace
隔离。Collector 实现 coordination.MetricsRecorder，可直接通过
coordination.WithMetrics 挂载到编排器。

# 主要能力

  - 协调指标：分配尝试（role/status）、交接（action/status）、
    冲突（type/action）、再平衡次数与每次重新分配的任务数、
    操作耗时（operation/status）以及 Agent 负载百分比。
  - HTTP 指标：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 基础设施指标：数据库连接池状态与 Redis 健康状态。
*/
package metrics
