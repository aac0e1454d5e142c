// Package procprobe is a pure function surface over one PID: liveness,
// parent PID, children, and RSS. It reads /proc when available and falls
// back to `ps` otherwise, per SPEC_FULL.md §6.4.
package procprobe

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// IsAlive reports whether pid refers to a live process. A process that has
// exited but not yet been reaped ("zombie") still counts as alive here —
// callers that need reaping semantics use the supervisor's waitpid path.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil || err == unix.EPERM {
		return true
	}
	return false
}

// ParentPID returns the parent PID of pid, or 0 if it can't be determined.
func ParentPID(pid int) int {
	if stat, err := readProcStat(pid); err == nil {
		return stat.ppid
	}
	if fields, err := psFields(); err == nil {
		for _, f := range fields {
			if f.pid == pid {
				return f.ppid
			}
		}
	}
	return 0
}

// Children returns the direct child PIDs of pid.
func Children(pid int) []int {
	var children []int
	if entries, err := os.ReadDir("/proc"); err == nil {
		for _, e := range entries {
			childPID, err := strconv.Atoi(e.Name())
			if err != nil {
				continue
			}
			if stat, err := readProcStat(childPID); err == nil && stat.ppid == pid {
				children = append(children, childPID)
			}
		}
		if len(children) > 0 || procAvailable() {
			return children
		}
	}
	if fields, err := psFields(); err == nil {
		for _, f := range fields {
			if f.ppid == pid {
				children = append(children, f.pid)
			}
		}
	}
	return children
}

// Descendants returns every PID transitively reachable from pid's children,
// rediscovered fresh on each call (the supervisor never caches this set).
func Descendants(pid int) []int {
	var all []int
	frontier := Children(pid)
	seen := map[int]bool{}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		all = append(all, next)
		frontier = append(frontier, Children(next)...)
	}
	return all
}

// RSS returns the resident set size, in bytes, of pid. It returns 0 if it
// can't be determined.
func RSS(pid int) int64 {
	if stat, err := readProcStat(pid); err == nil {
		return stat.rssPages * int64(os.Getpagesize())
	}
	return 0
}

func procAvailable() bool {
	_, err := os.Stat("/proc/self/stat")
	return err == nil
}

type procStat struct {
	pid      int
	ppid     int
	rssPages int64
}

// readProcStat parses /proc/<pid>/stat. Field layout per proc(5): pid (1),
// comm (2, parenthesized, may contain spaces), state (3), ppid (4); rss is
// field 24. We locate comm's closing paren first since comm may contain
// spaces or parens itself, then split the remainder on whitespace.
func readProcStat(pid int) (procStat, error) {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return procStat{}, err
	}
	line := string(raw)
	close := strings.LastIndexByte(line, ')')
	if close < 0 {
		return procStat{}, fmt.Errorf("procprobe: malformed stat for pid %d", pid)
	}
	fields := strings.Fields(line[close+1:])
	// fields[0] = state (field 3); ppid is field 4 -> fields[1]
	if len(fields) < 21 {
		return procStat{}, fmt.Errorf("procprobe: truncated stat for pid %d", pid)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return procStat{}, err
	}
	// rss is field 24 overall; fields[0] holds field 3 (state), so field 24
	// is fields[24-3] = fields[21].
	var rss int64
	if len(fields) > 21 {
		rss, _ = strconv.ParseInt(fields[21], 10, 64)
	}
	return procStat{pid: pid, ppid: ppid, rssPages: rss}, nil
}

type psField struct {
	pid  int
	ppid int
}

// psFields falls back to `ps -axo pid,ppid` on systems without /proc.
// The header, blank lines and unparseable lines are skipped rather than
// failing the whole call; a skipped line's process is absent from the result.
func psFields() ([]psField, error) {
	out, err := exec.Command("ps", "-axo", "pid,ppid").Output()
	if err != nil {
		return nil, err
	}
	var fields []psField
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue // header
		}
		if line == "" {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) < 2 {
			continue
		}
		pid, err1 := strconv.Atoi(cols[0])
		ppid, err2 := strconv.Atoi(cols[1])
		if err1 != nil || err2 != nil {
			continue
		}
		fields = append(fields, psField{pid: pid, ppid: ppid})
	}
	return fields, nil
}
