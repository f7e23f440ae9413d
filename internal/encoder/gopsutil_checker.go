package encoder

import "github.com/shirou/gopsutil/v4/process"

// GopsutilChecker is the production freezeChecker: it asks gopsutil whether
// the pid still exists and is not a zombie.
type GopsutilChecker struct{}

// IsRunning implements freezeChecker.
func (GopsutilChecker) IsRunning(pid int32) (bool, error) {
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return false, err
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return false, err
	}
	status, err := proc.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s == "zombie" || s == "Z" {
			return false, nil
		}
	}
	return true, nil
}
