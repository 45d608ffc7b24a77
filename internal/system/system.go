package system

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open-file limit; batch runs keep many
// sample files and frame grabs open at once.
func InitResourceLimits(log *slog.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn("could not read file limit", "error", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn("could not raise file limit", "error", err)
	} else {
		log.Debug("open file limit raised", "limit", rLimit.Cur)
	}
}

// DefaultWorkers sizes the clip worker pool from the host: one worker
// per logical CPU, scaled down when available memory is tight since each
// in-flight clip holds its full sample and keyframe arrays.
func DefaultWorkers() int {
	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		byMem := int(vm.Available / (256 << 20))
		if byMem > 0 && byMem < workers {
			workers = byMem
		}
	}

	if workers < 1 {
		workers = 1
	}
	return workers
}

// FindLatestSamples returns the newest face-sample YAML file in dir
func FindLatestSamples(dir string) (string, error) {
	return findLatest(dir, []string{".yaml", ".yml"}, "sample files")
}

// FindLatestVideo returns the newest video file in dir
func FindLatestVideo(dir string) (string, error) {
	return findLatest(dir, []string{".mp4", ".mov", ".mkv", ".webm"}, "video files")
}

func findLatest(dir string, extensions []string, kind string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() {
			continue
		}
		matched := false
		for _, ext := range extensions {
			if strings.HasSuffix(strings.ToLower(f.Name()), ext) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s found in %s", kind, dir)
	}

	return latestFile, nil
}
