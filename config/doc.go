// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package config 提供协调引擎与 agentcoord 运维程序的配置管理。

# 概述

配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加。环境变量键由
前缀与各层 env tag 拼接而成，例如 AGENTCOORD_COORDINATION_PROJECTS、
AGENTCOORD_STORE_TYPE；字符串切片以逗号分隔。

# 配置分区

  - Server：运维端点（/health、/metrics）端口、超时与限流
  - Coordination：评分权重、接受阈值、过载/空闲阈值、再平衡调度
  - Store：协调记录存储类型（memory、file、redis、sql）
  - Redis / Database：连接参数与连接池
  - Events：事件总线类型（memory、redis）与频道
  - Log / Telemetry：日志与 OpenTelemetry 导出

Config.Validate 校验各项取值范围，可通过 Loader.WithValidator 挂载。
*/
package config
