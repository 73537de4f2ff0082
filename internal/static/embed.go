package static

import (
	"embed"
	"io/fs"
)

//go:embed *.html
var pagesFS embed.FS

// Page returns the content of an embedded page such as "index.html".
func Page(name string) ([]byte, error) {
	return fs.ReadFile(pagesFS, name)
}
