package shader

import "fmt"

// Stage is a programmable pipeline stage. Each stage has its own cache.
type Stage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota
	// StagePixel is the pixel (fragment) stage.
	StagePixel
)

// String returns the short stage name used in file names and labels.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vs"
	case StagePixel:
		return "ps"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CacheFileName returns the name of the persistent program cache for one
// backend, one content identifier and one stage, e.g. "hal-GZLE01-vs.cache".
func CacheFileName(backend, uniqueID string, stage Stage) string {
	return fmt.Sprintf("%s-%s-%s.cache", backend, uniqueID, stage)
}
