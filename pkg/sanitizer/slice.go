package sanitizer

import "sort"

// NormalizeStringSlice applies normalizer to every item and drops empty
// results and duplicates, keeping first occurrence order.
func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

// NormalizeIDSet returns the trimmed, de-duplicated ids in sorted order so
// two requests naming the same set compare equal.
func NormalizeIDSet(ids []string) []string {
	result := NormalizeStringSlice(ids, NormalizeID)
	sort.Strings(result)
	return result
}

// SameSet reports whether a and b hold the same ids, ignoring order and
// duplicates.
func SameSet(a, b []string) bool {
	x, y := NormalizeIDSet(a), NormalizeIDSet(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
