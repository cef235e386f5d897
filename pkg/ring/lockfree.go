package ring

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

var lockFree = sync.OnceValue(func() bool {
	return nativeAtomics(runtime.GOARCH, goarm(), cpu.ARM.HasLPAE)
})

// LockFree reports whether the 64-bit atomics the ring is built on are
// implemented with native instructions on this platform.
//
// The Go runtime falls back to spinlock-guarded 64-bit atomics on 32-bit MIPS
// and on ARM builds targeting GOARM < 7. A ring running on such a platform
// would still be correct, but no longer lock-free, so New refuses to build it.
func LockFree() bool {
	return lockFree()
}

func nativeAtomics(goarch string, arm int, lpae bool) bool {
	switch goarch {
	case "amd64", "386", "arm64", "loong64", "mips64", "mips64le",
		"ppc64", "ppc64le", "riscv64", "s390x", "wasm":
		return true
	case "arm":
		// LDREXD/STREXD are used from GOARM=7; LPAE cores guarantee them
		// when the build setting is unknown.
		if arm > 0 {
			return arm >= 7
		}
		return lpae
	default:
		return false
	}
}

// goarm returns the GOARM level recorded in the build info, 0 if unknown.
func goarm() int {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return 0
	}
	for _, s := range info.Settings {
		if s.Key != "GOARM" {
			continue
		}
		// e.g. "7" or "6,softfloat"
		v, _, _ := strings.Cut(s.Value, ",")
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
