// Package info holds build metadata injected with -ldflags and the id of this process.
package info

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

var (
	Version    = "0.0.0"
	Dist       = "1"
	GitRev     = "000000"
	BuildTime  = "2000-01-01_00:00:00"
	InstanceID = uuid.New().String()
)

// Summary is what the transports report on their info endpoints
type Summary struct {
	Version    string `json:"version"`
	GitRev     string `json:"gitRev"`
	BuildTime  string `json:"buildTime"`
	InstanceID string `json:"instanceID"`
	Hostname   string `json:"hostname"`
}

func Get() Summary {
	host, _ := os.Hostname()
	return Summary{
		Version:    Version + "-" + Dist,
		GitRev:     GitRev,
		BuildTime:  BuildTime,
		InstanceID: InstanceID,
		Hostname:   host,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("ccspot %s (%s, built %s) instance %s", s.Version, s.GitRev, s.BuildTime, s.InstanceID)
}

// ConsumerName derives a stable-per-process consumer or session name
func ConsumerName(prefix string) string {
	return prefix + "-" + InstanceID[:8]
}
