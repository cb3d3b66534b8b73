// Package selfupdate implements the C7 self-update trampoline:
// identity detection for the running engine's own container, and the
// helper-container handoff that lets a container safely replace the
// image it is currently running from.
package selfupdate

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// RoleEnvVar and TargetContainerEnvVar are the two environment
// variables the spawned helper is started with.
const (
	RoleEnvVar            = "ROLE"
	TargetContainerEnvVar = "TARGET_CONTAINER"
	HelperRole            = "SELFUPDATEHELPER"
)

var cgroupScopeID = regexp.MustCompile(`docker-([0-9a-f]{64})\.scope`)
var cgroupRawID = regexp.MustCompile(`[0-9a-f]{64}`)

// Identity is the set of self-referential signals gathered at
// startup, combined to recognize the engine's own container among the
// candidates it is about to process.
type Identity struct {
	Hostname      string // $HOSTNAME / os.Hostname(), Docker sets this to the short container ID
	KernelNode    string // uname nodename, usually equal to hostname in a container
	CgroupID      string // full 64-hex container ID parsed from /proc/self/cgroup
	IsHelper      bool   // ROLE=SELFUPDATEHELPER
	TargetName    string // TARGET_CONTAINER, only meaningful when IsHelper
}

// Detect gathers the current process's self-identity signals. It
// never fails: every field is best-effort and an empty value simply
// narrows the match surface in Matches.
func Detect() Identity {
	id := Identity{}

	if h, err := os.Hostname(); err == nil {
		id.Hostname = h
		id.KernelNode = h
	}
	if h := os.Getenv("HOSTNAME"); h != "" {
		id.Hostname = h
	}

	id.CgroupID = readCgroupContainerID("/proc/self/cgroup")

	id.IsHelper = os.Getenv(RoleEnvVar) == HelperRole
	id.TargetName = os.Getenv(TargetContainerEnvVar)

	return id
}

// readCgroupContainerID extracts the full container ID from a cgroup
// path line, supporting both the systemd-cgroup "docker-<id>.scope"
// form and the raw 64-hex cgroupfs form.
func readCgroupContainerID(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := cgroupScopeID.FindStringSubmatch(line); len(m) == 2 {
			return m[1]
		}
		if m := cgroupRawID.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

// Matches reports whether the candidate container (by name and id)
// is the same container this process is running in. A match against
// the candidate's name, full id, or a prefix of its id (Docker sets
// the container hostname to the short 12-char id) counts as self.
func (id Identity) Matches(candidateName, candidateID string) bool {
	if candidateName != "" && (id.Hostname == candidateName || id.KernelNode == candidateName) {
		return true
	}
	if id.Hostname != "" && candidateID != "" {
		if strings.HasPrefix(candidateID, id.Hostname) || strings.HasPrefix(id.Hostname, shortID(candidateID)) {
			return true
		}
	}
	if id.CgroupID != "" && candidateID != "" {
		if id.CgroupID == candidateID || strings.HasPrefix(candidateID, id.CgroupID) || strings.HasPrefix(id.CgroupID, shortID(candidateID)) {
			return true
		}
	}
	if id.KernelNode != "" && id.KernelNode == candidateID {
		return true
	}
	return false
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
