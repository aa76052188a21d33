package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chrissnell/welltie/internal/anomaly"
	"github.com/chrissnell/welltie/internal/app"
	"github.com/chrissnell/welltie/pkg/config"
	"go.uber.org/zap"
)

func TestPrintAnomalies(t *testing.T) {
	var buf bytes.Buffer
	printAnomalies(&buf, nil)
	if strings.TrimSpace(buf.String()) != "no anomalies" {
		t.Errorf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	printAnomalies(&buf, []anomaly.Anomaly{{
		StartDepth: 1200, EndDepth: 1204.5, Rows: 19, AvgDiscordance: 44.1,
		Severity: anomaly.SeverityCritical, Kind: anomaly.KindDiscordance,
	}})
	out := buf.String()
	for _, want := range []string{"START", "1200.00", "1204.50", "CRITICAL", "DISCORDANCE"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyOffset(t *testing.T) {
	cfg := &config.ConfigData{Session: config.SessionData{Backend: config.BackendMemory}}
	cfg.ApplyDefaults()
	a, err := app.New(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if err := applyOffset(ctx, a, "not-a-number"); err != nil || a.Engine.Offsets().Stable() != 0 {
		t.Errorf("expected garbage offset to commit 0, got %v (%v)", a.Engine.Offsets().Stable(), err)
	}
	if err := applyOffset(ctx, a, "-45"); err != nil || a.Engine.Offsets().Stable() != -30 {
		t.Errorf("expected clamp to -30, got %v (%v)", a.Engine.Offsets().Stable(), err)
	}

	// No explicit offset and no saved session leaves the offset alone
	if err := applyOffset(ctx, a, ""); err != nil || a.Engine.Offsets().Stable() != -30 {
		t.Errorf("unexpected offset after empty restore: %v (%v)", a.Engine.Offsets().Stable(), err)
	}
}
