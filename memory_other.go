//go:build !linux
// +build !linux

package gudaprim

// getSystemMemory returns total system memory in bytes
func getSystemMemory() uint64 {
	return fallbackSystemMemory
}
