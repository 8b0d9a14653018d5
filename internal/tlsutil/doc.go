// Package tlsutil 提供集中式 TLS 配置，
// 为健康检查 HTTP 客户端与 Redis 目录缓存连接提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
