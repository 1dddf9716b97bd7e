// Package web 内嵌默认的 HTML 模板。
package web

import "embed"

// Templates 包含 templates/*.html。
//
//go:embed templates/*.html
var Templates embed.FS
