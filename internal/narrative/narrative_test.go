package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chrissnell/welltie/internal/anomaly"
	"go.uber.org/zap"
)

func TestHTTPGenerator(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Report{
			Nature:          "washout",
			PotentialCauses: []string{"borehole enlargement", "tool standoff"},
			ImpactSummary:   "porosity overstated",
		})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, "secret", time.Second, zap.NewNop().Sugar())
	a := anomaly.Anomaly{Kind: anomaly.KindDiscordance, StartDepth: 1200, EndDepth: 1210.5, AvgDiscordance: 44}

	report, err := g.Generate(context.Background(), RequestFor(a))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Nature != "washout" || len(report.PotentialCauses) != 2 {
		t.Errorf("unexpected report %+v", report)
	}
	if got.Kind != anomaly.KindDiscordance || got.StartDepth != 1200 || got.EndDepth != 1210.5 || got.AvgDiscordance != 44 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestHTTPGeneratorFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/error":
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		case "/garbage":
			_, _ = w.Write([]byte("{not json"))
		}
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "non-200", endpoint: srv.URL + "/error"},
		{name: "malformed body", endpoint: srv.URL + "/garbage"},
		{name: "unreachable", endpoint: "http://127.0.0.1:1/unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewHTTPGenerator(tt.endpoint, "", time.Second, zap.NewNop().Sugar())
			report, err := g.Generate(context.Background(), Request{})
			if err == nil || report != nil {
				t.Errorf("expected an error and no report, got %+v, %v", report, err)
			}
		})
	}
}

func TestHTTPGeneratorDisabled(t *testing.T) {
	g := NewHTTPGenerator("", "", 0, zap.NewNop().Sugar())
	if _, err := g.Generate(context.Background(), Request{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}
