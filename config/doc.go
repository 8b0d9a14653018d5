// Package config 提供 appusage 服务的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 APPUSAGE）的顺序加载，
// DatabaseConfig 通过 PoolConfig 转换为连接池配置。
package config
