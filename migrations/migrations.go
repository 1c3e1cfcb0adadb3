// Package migrations 内嵌 SQL 迁移文件，按文件名顺序执行。
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
