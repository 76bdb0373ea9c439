//go:build !debug

package dist

import (
	"embed"
	"io/fs"
)

//go:embed index.html script.js style.css
var content embed.FS

var Content fs.FS = content
