package helpers

// SafeLastN returns the last n elements, or the whole slice when it is shorter.
func SafeLastN[T any](slice []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(slice) > n {
		return slice[len(slice)-n:]
	}
	return slice
}
