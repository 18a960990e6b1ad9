package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindClient      = "client"
	KindCoordinator = "coordinator"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		return clientTemplate, nil
	case KindCoordinator:
		return coordinatorTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `host = "127.0.0.1"
port = 5000
timeout = "15s"
max_reply_bytes = 8388608
sender = "client"
recipient = "master"
`

const coordinatorTemplate = `id = "master"
listen_addr = ":5000"
admin_addr = "127.0.0.1:5080"
admin_token = ""
cors_origins = ["http://localhost:3000"]
workers = 4
read_timeout = "30s"
max_line_bytes = 8388608
`
