// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 管理 agentcoord 进程内共享的 Redis 连接。

Manager 在创建时 Ping 验证连通性，redis 协调存储
（persistence.NewRedisCoordinationStoreWithClient）与 redis 事件总线
（events.NewRedisBus）通过 Client 共用同一个连接池。后台健康检查
记录最近一次结果，供 /health 端点与 redis_healthy 指标读取；
Close 会等待健康检查协程退出后再关闭连接。
*/
package cache
