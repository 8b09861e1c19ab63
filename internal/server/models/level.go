package models

import (
	"sort"
	"strings"
)

// DefaultLevel is used when a component is created without a level.
const DefaultLevel = "collection"

// levels are the archival description levels accepted by ArchivesSpace.
var levels = map[string]struct{}{
	"class":      {},
	"collection": {},
	"file":       {},
	"fonds":      {},
	"item":       {},
	"otherlevel": {},
	"recordgrp":  {},
	"series":     {},
	"subfonds":   {},
	"subgrp":     {},
	"subseries":  {},
}

// NormalizeLevel lower-cases and trims level, substituting DefaultLevel for "".
func NormalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return DefaultLevel
	}
	return level
}

func IsValidLevel(level string) bool {
	_, ok := levels[level]
	return ok
}

// Levels lists the accepted levels in alphabetical order.
func Levels() []string {
	out := make([]string, 0, len(levels))
	for l := range levels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
