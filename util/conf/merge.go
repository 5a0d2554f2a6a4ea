package conf

// MergeDefaults flattens the given default maps into one, namespacing
// every key under ns. Later maps win on duplicate keys.
func MergeDefaults[M ~map[string]V, V any](ns string, maps ...M) M {
	merged := make(M)
	for _, m := range maps {
		for key, val := range m {
			merged[ns+"."+key] = val
		}
	}

	return merged
}
