// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，为 briefkit 提供
// 集中式的 TracerProvider 和 MeterProvider 配置。当遥测功能禁用时使用
// noop 实现，不连接任何外部服务。Instruments 为 flush 操作创建 span 与
// OTel 指标。
package telemetry
