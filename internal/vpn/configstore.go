package vpn

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

// ScriptConfigStore генерирует peer-конфиг внешним скриптом: скрипт создаёт
// пира в контейнере AmneziaWG и кладёт файл в <clientsDir>/<name>/<name>.conf.
type ScriptConfigStore struct {
	Script     string
	Container  string
	ClientsDir string
	Timeout    time.Duration
}

func NewScriptConfigStore(script, container, clientsDir string) *ScriptConfigStore {
	return &ScriptConfigStore{
		Script:     script,
		Container:  container,
		ClientsDir: clientsDir,
		Timeout:    2 * time.Minute,
	}
}

func (s *ScriptConfigStore) Generate(ctx context.Context, clientName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Script, clientName, s.Container)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: generator %s: %v: %s", errs.ErrExternalCall, s.Script, err, stderr.String())
	}

	confPath := filepath.Join(s.ClientsDir, clientName, clientName+".conf")
	data, err := os.ReadFile(confPath)
	if err != nil {
		return "", fmt.Errorf("%w: generated config not found at %s: %v", errs.ErrExternalCall, confPath, err)
	}
	return string(data), nil
}
