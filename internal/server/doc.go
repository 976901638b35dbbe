// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 agentcoord 运维 HTTP 端点（/health、/metrics）的
生命周期。

# 核心类型

  - Manager：封装 net/http.Server，提供 Start、Run、Shutdown 与
    异步错误通道。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时以及可选的 TLS 证书。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中服务。
  - 阻塞运行：Run 在 ctx 取消或服务异常时触发优雅关闭，
    信号处理由调用方通过 signal.NotifyContext 完成。
  - TLS：配置证书后使用 tlsutil 的加固配置监听 HTTPS。
*/
package server
