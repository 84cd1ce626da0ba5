package vpn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
)

// ScriptRotator вызывает внешний скрипт ротации preshared-ключей.
// Ростер пишется в stdin одним JSON-массивом, код возврата — признак успеха,
// stderr собирается для диагностики. Повторов внутри одного вызова нет:
// следующий плановый прогон пересоберёт ростер и повторит сам.
type ScriptRotator struct {
	Script     string
	ConfigFile string
	Container  string
	Timeout    time.Duration
}

func NewScriptRotator(script, configFile, container string) *ScriptRotator {
	return &ScriptRotator{
		Script:     script,
		ConfigFile: configFile,
		Container:  container,
		Timeout:    2 * time.Minute,
	}
}

func (r *ScriptRotator) Apply(ctx context.Context, roster []RosterEntry) error {
	payload, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Script, r.ConfigFile, r.Container)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: rotator %s: %v: %s", errs.ErrExternalCall, r.Script, err, stderr.String())
	}
	logger.Info("rotator applied",
		zap.Int("entries", len(roster)),
		zap.String("stdout", stdout.String()),
	)
	return nil
}
