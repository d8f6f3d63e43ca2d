package runner

import (
	"regexp"
	"strconv"

	"github.com/shirou/gopsutil/v3/process"
)

// Patterns tried in order against every new log line. First match with a
// port in the unprivileged range wins.
var portPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:listening|running|started|bound).*?(?:on|at).*?port\s+(\d+)`),
	regexp.MustCompile(`(?i)(?:listening|running|started|bound).*?port\s+(\d+)`),
	regexp.MustCompile(`(?i)http://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::\]):(\d+)`),
	regexp.MustCompile(`(?i)https://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::\]):(\d+)`),
	regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1|0\.0\.0\.0):(\d+)(?:\s|$|/|\?|,)`),
}

// PortFromLogLine scans one log line for a mention of the port a server
// bound. Returns 0 when nothing plausible is found.
func PortFromLogLine(line string) int {
	for _, pattern := range portPatterns {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if port >= 1024 && port <= 65535 {
			return port
		}
	}
	return 0
}

// listeningPort inspects the listening inet sockets of a process and all
// its descendants, returning the first local port >= 1024. The main
// process is often just a wrapper (npm, a shell) with the real server as a
// child, so the whole tree is checked. Best effort: any error yields 0.
func listeningPort(proc *process.Process) int {
	if proc == nil {
		return 0
	}

	procs := []*process.Process{proc}
	procs = append(procs, descendants(proc)...)

	for _, p := range procs {
		conns, err := p.Connections()
		if err != nil {
			continue
		}
		for _, conn := range conns {
			if conn.Status != "LISTEN" {
				continue
			}
			if port := int(conn.Laddr.Port); port >= 1024 {
				return port
			}
		}
	}
	return 0
}

// descendants walks Children recursively. Errors (process gone, access
// denied) simply truncate the walk.
func descendants(proc *process.Process) []*process.Process {
	var out []*process.Process
	kids, err := proc.Children()
	if err != nil {
		return out
	}
	for _, kid := range kids {
		out = append(out, kid)
		out = append(out, descendants(kid)...)
	}
	return out
}
