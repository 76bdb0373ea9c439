//go:build debug

package dist

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Content serves the assets straight from this directory so they can be
// edited without rebuilding.
var Content fs.FS

func init() {
	_, file, _, _ := runtime.Caller(0)
	Content = os.DirFS(filepath.Dir(file))
}
