// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentcoord 运维程序入口。

# 概述

cmd/agentcoord 基于 cobra 组织子命令。所有命令共享 --config，
配置按 默认值 → YAML 文件 → AGENTCOORD_ 环境变量 的顺序加载。

# 子命令

  - serve：装配存储、事件总线与编排器，运行再平衡调度器，并在
    同一端口暴露 /health 与 /metrics；SIGINT/SIGTERM 时优雅退出
  - rebalance：对单个项目执行一次再平衡并输出 JSON
  - workload：输出单个 Agent 的负载 JSON
  - migrate：up、down、steps、force、status、version、info
  - health：探测运行中实例的 /health
  - version：构建信息，Version、BuildTime、GitCommit 通过 ldflags 注入

# 中间件链

Recovery、RequestID、SecurityHeaders、RequestLogger（同时记录
HTTP 指标）、RateLimiter（基于 IP）。
*/
package main
