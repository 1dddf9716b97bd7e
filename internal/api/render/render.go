package render

import (
	"html/template"
	"io/fs"

	"github.com/gin-gonic/gin"
)

// View 是展示层边界，处理器只负责组装数据。
type View interface {
	Render(c *gin.Context, status int, name string, data gin.H)
}

// HTML 使用 gin 的 HTML 渲染器输出模板。
type HTML struct{}

// Render 渲染模板。
func (HTML) Render(c *gin.Context, status int, name string, data gin.H) {
	c.HTML(status, name, data)
}

// LoadTemplates 从文件系统加载 *.html 模板并挂到 gin 引擎上。
func LoadTemplates(r *gin.Engine, fsys fs.FS, pattern string) error {
	tmpl, err := template.New("").ParseFS(fsys, pattern)
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)
	return nil
}
