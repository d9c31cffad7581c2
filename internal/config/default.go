package config

import (
	"fmt"
	"strings"

	"github.com/banshee-data/radmon-relay/internal/fsutil"
)

var defaultLegacy = strings.Join([]string{
	"# Parameter names are not case-sensitive",
	"# Parameter values are case-sensitive",
	"user=test_user",
	"password=test_password",
	"# Port is usually /dev/ttyUSBx in Linux and COMx in Windows",
	"serialport=/dev/ttyUSB0",
	"speed=2400",
	"# Protocols: demo, mygeiger, gmc, netio",
	"protocol=demo",
	"",
}, "\r\n")

var defaultYAML = `# radmon relay configuration
user: test_user
password: test_password
# Port is usually /dev/ttyUSBx in Linux and COMx in Windows
serialport: /dev/ttyUSB0
speed: 2400
# Protocols: demo, mygeiger, gmc, netio
protocol: demo
server:
  host: www.radmon.org
  port: 80
upload_interval: 30s
retry_interval: 5s
# listen: 127.0.0.1:8080
`

var defaultJSON = `{
  "user": "test_user",
  "password": "test_password",
  "serialport": "/dev/ttyUSB0",
  "speed": 2400,
  "protocol": "demo",
  "server": {"host": "www.radmon.org", "port": 80},
  "upload_interval": "30s",
  "retry_interval": "5s"
}
`

// WriteDefault writes a commented starter configuration in the format
// implied by the path's extension. Existing files are never overwritten.
func WriteDefault(fsys fsutil.FileSystem, path string) error {
	if fsys.Exists(path) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	var body string
	switch formatOf(path) {
	case formatYAML:
		body = defaultYAML
	case formatJSON:
		body = defaultJSON
	default:
		body = defaultLegacy
	}
	if err := fsys.WriteFile(path, []byte(body), 0600); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
