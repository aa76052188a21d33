package restserver

import (
	"time"

	"github.com/chrissnell/welltie/internal/anomaly"
	"github.com/chrissnell/welltie/internal/combine"
	"github.com/chrissnell/welltie/internal/storage"
)

// OffsetRequest sets the live offset. Offset may be a number or a string;
// anything that is not a number is treated as 0.
type OffsetRequest struct {
	Offset any `json:"offset"`
}

// OffsetResponse reports the offset state
type OffsetResponse struct {
	Live    float64 `json:"live"`
	Stable  float64 `json:"stable"`
	Pending bool    `json:"pending"`
	Limit   float64 `json:"limit"`
}

type VisibleRequest struct {
	Visible bool `json:"visible"`
}

type ColorRequest struct {
	Color string `json:"color"`
}

type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type OverlayResponse struct {
	ID      string `json:"id"`
	Samples int    `json:"samples"`
}

// ScanRequest runs a threshold scan. Unset fields fall back to the
// configured defaults.
type ScanRequest struct {
	Threshold any   `json:"threshold,omitempty"`
	Sensitive *bool `json:"sensitive,omitempty"`
}

type AuditRequest struct {
	Center float64 `json:"center"`
	Window float64 `json:"window"`
}

// CombinedResponse is the combined dataset at the stable offset
type CombinedResponse struct {
	Offset float64       `json:"offset"`
	Rows   []combine.Row `json:"rows"`
}

type AnomaliesResponse struct {
	Anomalies []anomaly.Anomaly `json:"anomalies"`
}

type ReportsResponse struct {
	Reports []storage.ArchivedReport `json:"reports"`
}

type SessionResponse struct {
	Offset  float64   `json:"offset"`
	Found   bool      `json:"found"`
	SavedAt time.Time `json:"saved_at,omitempty"`
	Message string    `json:"message,omitempty"`
}

type HealthResponse struct {
	Status  string          `json:"status"`
	Storage *storage.Health `json:"storage,omitempty"`
}
