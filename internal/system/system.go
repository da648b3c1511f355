package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// InitResourceLimits raises the open-file limit; page rasterization and
// ffmpeg pipelines open many handles at once.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not read file limit", "err", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not raise file limit", "err", err)
	}
}

// FindLatest returns the newest file in dir matching one of the
// extensions (lowercase, with dot).
func FindLatest(dir string, extensions ...string) (string, error) {
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
		name := strings.ToLower(f.Name())
		matched := false
		for _, ext := range extensions {
			if strings.HasSuffix(name, ext) {
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
		return "", fmt.Errorf("no %s files found in %s", strings.Join(extensions, "/"), dir)
	}
	return latestFile, nil
}

// FindLatestPDF returns the newest PDF in dir.
func FindLatestPDF(dir string) (string, error) {
	return FindLatest(dir, ".pdf")
}

// FindLatestAudio returns the newest audio file in dir.
func FindLatestAudio(dir string) (string, error) {
	return FindLatest(dir, ".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac")
}

// GetAudioDuration probes an audio file's duration in seconds via ffprobe.
func GetAudioDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, err
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, err
	}
	return duration, nil
}

// Stats is a point-in-time resource snapshot for the performance report.
type Stats struct {
	CPUCount   int
	CPUPercent float64
	TotalMemMB uint64
	ProcRSSMB  uint64
}

// Snapshot collects host and process resource usage. Fields that cannot be
// read stay zero; the report is best effort.
func Snapshot() Stats {
	var s Stats
	if n, err := cpu.Counts(true); err == nil {
		s.CPUCount = n
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.TotalMemMB = vm.Total / 1024 / 1024
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			s.ProcRSSMB = mi.RSS / 1024 / 1024
		}
	}
	return s
}
