package common

import "strings"

// SNMPResult looks oid up in results. gosnmp reports names with a leading
// dot, OID constants are written without one; both forms match.
func SNMPResult(results map[string]interface{}, oid string) (interface{}, bool) {
	trimmed := strings.TrimPrefix(oid, ".")
	if v, ok := results["."+trimmed]; ok {
		return v, true
	}
	v, ok := results[trimmed]
	return v, ok
}

// SNMPString converts an OctetString value.
func SNMPString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// SNMPUint converts counters, gauges and TimeTicks. Negative values are
// rejected.
func SNMPUint(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		return uint64(v), v >= 0 //nolint:gosec // sign checked
	case int64:
		return uint64(v), v >= 0 //nolint:gosec // sign checked
	}
	return 0, false
}
