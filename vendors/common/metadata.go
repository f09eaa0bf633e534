// Package common holds helpers shared by the drivers and vendor adapters.
package common

import "strconv"

// MetadataString returns the value of the first key present in meta.
func MetadataString(meta map[string]string, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := meta[key]; ok {
			return v, true
		}
	}
	return "", false
}

// MetadataInt returns the first key of meta holding an integer. Keys with
// non numeric values are skipped.
func MetadataInt(meta map[string]string, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := meta[key]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

// MetadataStringOr is MetadataString with a fallback.
func MetadataStringOr(meta map[string]string, def string, keys ...string) string {
	if v, ok := MetadataString(meta, keys...); ok {
		return v
	}
	return def
}

// MetadataIntOr is MetadataInt with a fallback.
func MetadataIntOr(meta map[string]string, def int, keys ...string) int {
	if n, ok := MetadataInt(meta, keys...); ok {
		return n
	}
	return def
}
