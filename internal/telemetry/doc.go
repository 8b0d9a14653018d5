// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为 appusage 服务提供 TracerProvider 与 MeterProvider。
// 禁用时使用 noop 实现，不连接任何外部服务；
// 启用后连接池的 ExecuteWithRetry 会为每次带重试的操作生成 span。
package telemetry
