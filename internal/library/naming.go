package library

import (
	"path"
	"strings"
)

// Sidecar suffixes. A .3mf file "x.3mf" pairs with "x-munchie.json";
// an .stl file "x.stl" pairs with "x-stl-munchie.json".
const (
	SidecarSuffix    = "-munchie.json"
	STLSidecarSuffix = "-stl-munchie.json"
)

// primaryExts maps a primary model extension to its sidecar suffix.
var primaryExts = map[string]string{
	".3mf": SidecarSuffix,
	".stl": STLSidecarSuffix,
}

// IsSidecar reports whether name follows the sidecar naming convention.
func IsSidecar(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), SidecarSuffix)
}

// IsPrimary reports whether name has a primary model extension.
func IsPrimary(name string) bool {
	_, ok := primaryExts[strings.ToLower(path.Ext(name))]
	return ok
}

// CompanionPath returns the sidecar path for a primary model file.
// Paths that are not primary model files are returned unchanged.
func CompanionPath(primary string) string {
	ext := path.Ext(primary)
	suffix, ok := primaryExts[strings.ToLower(ext)]
	if !ok {
		return primary
	}
	return strings.TrimSuffix(primary, ext) + suffix
}

// PrimaryCandidates returns the primary model paths a sidecar may describe,
// most specific first.
func PrimaryCandidates(sidecarPath string) []string {
	lower := strings.ToLower(sidecarPath)
	switch {
	case strings.HasSuffix(lower, STLSidecarSuffix):
		base := sidecarPath[:len(sidecarPath)-len(STLSidecarSuffix)]
		return []string{base + ".stl"}
	case strings.HasSuffix(lower, SidecarSuffix):
		base := sidecarPath[:len(sidecarPath)-len(SidecarSuffix)]
		return []string{base + ".3mf"}
	}
	return nil
}

// RemapWriteTarget guards metadata writes: a target naming a primary model
// binary is redirected to its sidecar so model assets are never overwritten.
func RemapWriteTarget(target string) string {
	if IsPrimary(target) {
		return CompanionPath(target)
	}
	return target
}
