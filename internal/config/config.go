// Package config loads the relay configuration.
//
// Three file formats are accepted and chosen by extension: YAML (.yaml,
// .yml), JSON (.json) and the legacy line format used by config.txt, in
// which each line is parameter=value, parameter names are case-insensitive
// and lines starting with # are comments.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/radmon-relay/internal/device"
	"github.com/banshee-data/radmon-relay/internal/fsutil"
	"github.com/banshee-data/radmon-relay/internal/monitoring"
	"github.com/banshee-data/radmon-relay/internal/serialport"
	"github.com/banshee-data/radmon-relay/internal/upload"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "config.txt"

const (
	DefaultUploadInterval = 30 * time.Second
	DefaultRetryInterval  = 5 * time.Second

	maxFileSize = 1 << 20
)

var (
	// ErrNotFound is returned by Load when the file does not exist.
	ErrNotFound = errors.New("configuration file not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
	// ErrExists is returned by WriteDefault when the file is already present.
	ErrExists = errors.New("configuration file already exists")
)

var logf = monitoring.Scoped("config")

type format int

const (
	formatLegacy format = iota
	formatYAML
	formatJSON
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".json":
		return formatJSON
	}
	return formatLegacy
}

// Config is the relay configuration.
type Config struct {
	User       string          `json:"user" yaml:"user"`
	Password   string          `json:"password" yaml:"password"`
	SerialPort string          `json:"serialport" yaml:"serialport"`
	Speed      int             `json:"speed" yaml:"speed"`
	Protocol   device.Protocol `json:"protocol" yaml:"protocol"`
	Server     Server          `json:"server" yaml:"server"`

	UploadInterval Duration `json:"upload_interval" yaml:"upload_interval"`
	RetryInterval  Duration `json:"retry_interval" yaml:"retry_interval"`

	// Listen is the status server address; empty disables it.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Server is the radmon.org endpoint.
type Server struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Default returns a Config with every optional field set. Protocol is left
// unknown so a file that never names one fails validation.
func Default() *Config {
	return &Config{
		Speed:          serialport.DefaultBaudRate,
		Server:         Server{Host: upload.DefaultHost, Port: upload.DefaultPort},
		UploadInterval: Duration(DefaultUploadInterval),
		RetryInterval:  Duration(DefaultRetryInterval),
	}
}

// Load reads the file at path on fsys, layering it over Default.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	info, err := fsys.Stat(cleanPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch formatOf(cleanPath) {
	case formatYAML:
		err = yaml.Unmarshal(data, cfg)
	case formatJSON:
		err = json.Unmarshal(data, cfg)
	default:
		err = parseLegacy(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// parseLegacy applies parameter=value lines to cfg. Unknown parameters and
// lines without '=' are ignored.
func parseLegacy(data []byte, cfg *Config) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		if err := cfg.set(name, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func (c *Config) set(name, value string) error {
	var err error
	switch name {
	case "user":
		c.User = value
	case "password":
		c.Password = value
	case "serialport":
		c.SerialPort = value
	case "speed":
		c.Speed, err = strconv.Atoi(value)
	case "protocol":
		// An unrecognised protocol leaves the field unknown for Validate to report.
		if p, perr := device.ParseProtocol(value); perr == nil {
			c.Protocol = p
		} else {
			logf("ignoring protocol %q", value)
		}
	case "host":
		c.Server.Host = value
	case "port":
		c.Server.Port, err = strconv.Atoi(value)
	case "upload_interval", "uploadinterval":
		err = c.UploadInterval.parse(value)
	case "retry_interval", "retryinterval":
		err = c.RetryInterval.parse(value)
	case "listen":
		c.Listen = value
	default:
		logf("ignoring unknown parameter %q", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Validate reports the first problem that would stop the relay from running.
func (c *Config) Validate() error {
	switch {
	case c.Protocol == device.ProtocolUnknown:
		return fmt.Errorf("%w: protocol must be one of demo, mygeiger, gmc, netio", ErrInvalid)
	case c.Protocol.NeedsPort() && c.SerialPort == "":
		return fmt.Errorf("%w: serialport is required for protocol %s", ErrInvalid, c.Protocol)
	case c.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive, got %d", ErrInvalid, c.Speed)
	case c.User == "":
		return fmt.Errorf("%w: user is required", ErrInvalid)
	case c.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalid)
	case c.Server.Host == "":
		return fmt.Errorf("%w: server host is required", ErrInvalid)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server port %d out of range", ErrInvalid, c.Server.Port)
	case c.UploadInterval <= 0 || c.RetryInterval <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalid)
	}
	return nil
}

// DeviceConfig returns the device settings. Clock, Factory and Timing are
// left for the caller.
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		Protocol: c.Protocol,
		Path:     c.SerialPort,
		Options:  serialport.PortOptions{BaudRate: c.Speed},
	}
}

// UploadConfig returns the radmon.org client settings.
func (c *Config) UploadConfig() upload.Config {
	return upload.Config{
		Host:     c.Server.Host,
		Port:     c.Server.Port,
		User:     c.User,
		Password: c.Password,
	}
}
