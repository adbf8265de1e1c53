//go:build !amd64

package simd

// Non-x86 targets run the portable SWAR kernel.
var useWideKernel = false
