package loader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chrissnell/welltie/internal/series"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []series.Sample
		wantErr error
	}{
		{
			name:  "header and unsorted rows",
			input: "depth,gr\n1201.0,55.2\n1200.5,48.1\n1200.75,50\n",
			want:  []series.Sample{{Depth: 1200.5, Value: 48.1}, {Depth: 1200.75, Value: 50}, {Depth: 1201, Value: 55.2}},
		},
		{
			name:  "duplicate depth keeps last",
			input: "10,1\n10,2\n11,3\n",
			want:  []series.Sample{{Depth: 10, Value: 2}, {Depth: 11, Value: 3}},
		},
		{
			name:  "comments nulls and short rows skipped",
			input: "# run 2\n5,-999.25\n6\n7, 8.5 ,extra\n",
			want:  []series.Sample{{Depth: 7, Value: 8.5}},
		},
		{
			name:    "nothing readable",
			input:   "depth,value\n",
			wantErr: ErrNoSamples,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadCSV: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gr.csv")
	if err := os.WriteFile(path, []byte("1,2\n3,4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCSVFile(path)
	if err != nil || len(got) != 2 {
		t.Errorf("ReadCSVFile: %v %v", got, err)
	}

	if _, err := ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
