// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 agentcoord 提供 TracerProvider 与 MeterProvider，
// 编排器通过 coordination.WithTracerProvider 接入。
// 当遥测功能禁用时返回 noop 实现，不连接任何外部服务。
package telemetry
