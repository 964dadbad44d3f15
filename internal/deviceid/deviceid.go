// Package deviceid derives the stable per-machine identifier used both as the
// device id sent to the authorization service and as key material for the
// vault's at-rest encryption.
package deviceid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/credbroker/internal/logging"
)

// machineIDFiles are probed in order for a platform machine identifier.
var machineIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/etc/hostid",
}

// Provider computes the device fingerprint once and caches it for the life of
// the process.
//
// Fingerprint = hex(SHA-256(machineID || salt)) truncated to 32 characters.
// If no platform identifier is available the Provider falls back to a random
// per-process id; that id is never persisted, so the machine appears as a new
// device on every restart. The fallback is logged at Warn because it
// desynchronizes both server-side device binding and local vault decryption.
type Provider struct {
	salt   []byte
	log    logging.Logger
	readID func() (string, error)

	once sync.Once
	id   string
}

// NewProvider returns a Provider using the given device salt.
func NewProvider(salt []byte, log logging.Logger) *Provider {
	return &Provider{salt: salt, log: log, readID: readMachineID}
}

// Fingerprint returns the 32-character device fingerprint.
func (p *Provider) Fingerprint() string {
	p.once.Do(func() {
		machineID, err := p.readID()
		if err != nil {
			p.id = strings.ReplaceAll(uuid.NewString(), "-", "")[:32]
			p.log.Warn(context.Background(), "machine id unavailable, using per-process device id",
				"error", err)
			return
		}
		h := sha256.New()
		h.Write([]byte(machineID))
		h.Write(p.salt)
		p.id = hex.EncodeToString(h.Sum(nil))[:32]
	})
	return p.id
}

func readMachineID() (string, error) {
	var lastErr error
	for _, f := range machineIDFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			lastErr = err
			continue
		}
		id := strings.TrimSpace(string(data))
		if id == "" {
			lastErr = errors.New("empty machine id file")
			continue
		}
		return id, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no machine id source")
	}
	return "", lastErr
}
