// Package migrations содержит SQL миграции каталога в формате goose
package migrations

import "embed"

// FS встроенные файлы миграций
//
//go:embed *.sql
var FS embed.FS
