//go:build amd64

package simd

import "golang.org/x/sys/cpu"

// The wide kernel is only worthwhile on cores with AVX2-class load
// throughput; everything earlier runs the 8-byte SWAR loop.
var useWideKernel = cpu.X86.HasAVX2
