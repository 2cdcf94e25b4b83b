// Package tlsutil 提供 BriefKit 的 TLS 默认配置（TLS 1.2+，仅 AEAD 密码套件），
// 用于 Redis 会话存储连接与 health 子命令的探测客户端。
package tlsutil
