package responseformat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Offset float64 `json:"offset"`
}

func TestWriteResponseFormats(t *testing.T) {
	f := NewFormatter()

	tests := []struct {
		name        string
		url         string
		accept      string
		contentType string
	}{
		{name: "default json", url: "/offset", contentType: "application/json"},
		{name: "query msgpack", url: "/offset?format=msgpack", contentType: "application/x-msgpack"},
		{name: "accept msgpack", url: "/offset", accept: "application/msgpack", contentType: "application/x-msgpack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()

			if err := f.WriteResponse(rec, req, payload{Offset: 1.25}); err != nil {
				t.Fatalf("WriteResponse: %v", err)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("expected %s, got %s", tt.contentType, got)
			}

			var got map[string]any
			if tt.contentType == "application/json" {
				err := json.Unmarshal(rec.Body.Bytes(), &got)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
			} else if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got["offset"] != 1.25 {
				t.Errorf("expected offset 1.25 under its json name, got %v", got)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_ = NewFormatter().WriteError(rec, req, http.StatusConflict, errors.New("busy"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	var body ErrorBody
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "busy" {
		t.Errorf("unexpected body %+v", body)
	}
}
