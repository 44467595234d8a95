package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const deviceIDFile = "device.id"

var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// DeviceID returns a stable identifier for this machine, used to salt the
// primary store. It is not a secret. The OS machine id is preferred; where
// there is none a random id is generated once and kept in dir.
func DeviceID(dir string) (string, error) {
	for _, p := range machineIDPaths {
		if id := readID(p); id != "" {
			return id, nil
		}
	}

	path := filepath.Join(dir, deviceIDFile)
	if id := readID(path); id != "" {
		return id, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("device id dir: %w", err)
	}
	id := uuid.NewString()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// lost a race with another writer; theirs wins
			if id := readID(path); id != "" {
				return id, nil
			}
		}
		return "", fmt.Errorf("device id: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(id + "\n"); err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	return id, nil
}

func readID(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
