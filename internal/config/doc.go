// Package config loads the support-gateway configuration.
//
// # File Format
//
// Configuration is read from YAML, or from TOML when the file name ends in
// ".toml". Both formats use the same keys:
//
//	server:
//	  http_addr: "localhost:8080"
//	  shutdown_timeout: "10s"
//	database:
//	  path: "/var/lib/support-gateway/gateway.db"
//	auth:
//	  jwt_secret: "${SUPPORT_GATEWAY_SECRET}"
//	  token_ttl: "720h"
//	  dev_tokens: false
//	realtime:
//	  max_message_bytes: 65536
//	  handler_timeout: "10s"
//	logging:
//	  level: "info"
//	  format: "text"
//
// # Environment
//
// ${VAR} references anywhere in the file are expanded before parsing. After
// parsing, SUPPORT_GATEWAY_HTTP_ADDR, SUPPORT_GATEWAY_DB_PATH,
// SUPPORT_GATEWAY_JWT_SECRET, SUPPORT_GATEWAY_DEV_TOKENS,
// SUPPORT_GATEWAY_ALLOWED_ORIGINS, SUPPORT_GATEWAY_LOG_LEVEL and
// SUPPORT_GATEWAY_LOG_FORMAT override the matching fields.
//
// Duration fields accept time.ParseDuration strings. Omitted optional fields
// keep the values from Default.
package config
