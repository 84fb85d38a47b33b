package common

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"go.uber.org/automaxprocs/maxprocs"
)

var ErrInvalidMemLimitRatio = errors.New("mem limit ratio must be in ]0, 1]")

type RuntimeLimits struct {
	MaxProcs int
	// MemLimit is 0 when no container limit was found.
	MemLimit int64
}

// TuneRuntime aligns GOMAXPROCS with the cpu quota and GOMEMLIMIT with ratio of the memory limit.
func TuneRuntime(logger logr.Logger, memLimitRatio float64) (RuntimeLimits, error) {
	if memLimitRatio <= 0 || memLimitRatio > 1 {
		return RuntimeLimits{}, fmt.Errorf("%w: %v", ErrInvalidMemLimitRatio, memLimitRatio)
	}

	// maxprocs logs printf style, logr expects key/values
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.V(1).Info(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		return RuntimeLimits{}, fmt.Errorf("failed to set max procs: %w", err)
	}

	limit, err := memlimit.SetGoMemLimit(memLimitRatio)
	if err != nil {
		return RuntimeLimits{}, fmt.Errorf("failed to set go mem limit: %w", err)
	}

	ret := RuntimeLimits{
		MaxProcs: runtime.GOMAXPROCS(0),
		MemLimit: limit,
	}

	memLimit := "none"
	if ret.MemLimit > 0 {
		memLimit = humanize.IBytes(uint64(ret.MemLimit))
	}

	logger.Info("Runtime tuned", "maxProcs", ret.MaxProcs, "memLimit", memLimit, "ratio", memLimitRatio, "gcPercent", gcPercent())

	return ret, nil
}

func gcPercent() int {
	// SetGCPercent returns the previous value, put it back right away
	ret := debug.SetGCPercent(100)
	debug.SetGCPercent(ret)

	return ret
}
