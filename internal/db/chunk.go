package db

// MaxKeysPerQuery bounds IN-list and ANY-array lookups.
const MaxKeysPerQuery = 100

// Chunk splits keys into consecutive slices of at most size elements.
func Chunk[T any](keys []T, size int) [][]T {
	if size <= 0 {
		size = MaxKeysPerQuery
	}
	if len(keys) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end])
	}
	return out
}
