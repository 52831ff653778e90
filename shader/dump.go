package shader

import (
	"fmt"
	"os"
	"path/filepath"
)

// dumper writes failing sources to a directory for offline inspection.
// A dumper with an empty dir does nothing.
type dumper struct {
	dir        string
	stage      Stage
	failures   int
	mismatches int
}

// compileFailure writes bad_<stage>_<NNNN>.txt with the source followed by
// the diagnostics.
func (d *dumper) compileFailure(source string, err error) string {
	if d.dir == "" {
		return ""
	}
	name := fmt.Sprintf("bad_%s_%04d.txt", d.stage, d.failures)
	d.failures++
	return d.write(name, fmt.Sprintf("%s\n\n// %s compile failed: %v\n", source, d.stage, err))
}

// mismatch writes both sources that share one key to
// mismatch_<stage>_<NNNN>_a.txt and _b.txt.
func (d *dumper) mismatch(a, b string) {
	if d.dir == "" {
		return
	}
	prefix := fmt.Sprintf("mismatch_%s_%04d", d.stage, d.mismatches)
	d.mismatches++
	d.write(prefix+"_a.txt", a)
	d.write(prefix+"_b.txt", b)
}

func (d *dumper) write(name, content string) string {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		slogger().Warn("shader: dump dir", "dir", d.dir, "err", err)
		return ""
	}
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		slogger().Warn("shader: dump", "path", path, "err", err)
		return ""
	}
	return path
}
