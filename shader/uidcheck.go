package shader

import (
	"errors"
	"fmt"
)

// ErrKeyCollision is returned by UIDChecker.Check when one key maps to two
// different sources.
var ErrKeyCollision = errors.New("shader: key collision")

// UIDChecker verifies key derivation against generated source.
//
// Two configurations with the same key must generate identical source; a
// violation means a program compiled for one configuration would be
// silently used for another. The reverse case, identical source under
// different keys, is harmless but wasteful and is only reported.
//
// The checker observes; it never changes what the cache selects.
type UIDChecker struct {
	stage      Stage
	byKey      map[Key]string
	bySource   map[string]Key
	dump       *dumper
	collisions int
	redundant  int
}

// NewUIDChecker returns an empty checker. Mismatching sources are written
// to dumpDir when it is not empty.
func NewUIDChecker(stage Stage, dumpDir string) *UIDChecker {
	return newUIDChecker(stage, &dumper{dir: dumpDir, stage: stage})
}

func newUIDChecker(stage Stage, d *dumper) *UIDChecker {
	return &UIDChecker{
		stage:    stage,
		byKey:    make(map[Key]string),
		bySource: make(map[string]Key),
		dump:     d,
	}
}

// Check records the (key, source) pair and reports a collision with an
// earlier pair.
func (u *UIDChecker) Check(key Key, source string) error {
	if prev, ok := u.byKey[key]; ok {
		if prev == source {
			return nil
		}
		u.collisions++
		slogger().Error("shader: key collision",
			"stage", u.stage.String(), "key", key.String(), "count", u.collisions)
		u.dump.mismatch(prev, source)
		return fmt.Errorf("%w: %s key %s", ErrKeyCollision, u.stage, key)
	}
	u.byKey[key] = source

	if other, ok := u.bySource[source]; ok {
		u.redundant++
		slogger().Warn("shader: redundant key, identical source",
			"stage", u.stage.String(), "key", key.String(), "other", other.String())
		return nil
	}
	u.bySource[source] = key
	return nil
}

// Invalidate forgets every recorded pair.
func (u *UIDChecker) Invalidate() {
	clear(u.byKey)
	clear(u.bySource)
}

// Collisions returns the number of key collisions seen.
func (u *UIDChecker) Collisions() int {
	return u.collisions
}

// Redundant returns the number of redundant keys seen.
func (u *UIDChecker) Redundant() int {
	return u.redundant
}
