package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"stemsense/internal/config"
)

// minFreeBytes is the advisory floor for working disk space. Demucs output
// for one track can run to several hundred megabytes of WAV.
const minFreeBytes = 2 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem backing path has working headroom.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/float64(1<<30))
	if free < minFreeBytes {
		return Result{Name: name, Detail: detail + " below 2 GiB floor"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSigningSecret verifies signed URL issuance is configured.
func CheckSigningSecret(cfg *config.Config) Result {
	const name = "Signing secret"
	if strings.TrimSpace(cfg.Storage.SigningSecret) == "" {
		return Result{Name: name, Detail: "storage.signing_secret is not set; downloads cannot be signed"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}
