package anomaly

import (
	"math"
	"testing"

	"github.com/chrissnell/welltie/internal/combine"
)

// rowsWithDiscordance builds matched rows at depths 0,1,2,... whose
// discordance equals the given values.
func rowsWithDiscordance(values ...float64) []combine.Row {
	rows := make([]combine.Row, len(values))
	for i, d := range values {
		cmp := 100 + d
		rows[i] = combine.Row{
			Depth:       float64(i),
			Reference:   100,
			Comparison:  &cmp,
			Discordance: d,
		}
	}
	return rows
}

func TestClassify(t *testing.T) {
	tests := []struct {
		avg      float64
		expected Severity
	}{
		{avg: 50, expected: SeverityCritical},
		{avg: 40.0001, expected: SeverityCritical},
		{avg: 40, expected: SeverityWarning},
		{avg: 20, expected: SeverityWarning},
		{avg: 15, expected: SeverityMicro},
		{avg: 0, expected: SeverityMicro},
	}

	for _, tt := range tests {
		if got := Classify(tt.avg); got != tt.expected {
			t.Errorf("Classify(%.4f): expected %s, got %s", tt.avg, tt.expected, got)
		}
	}
}

func TestScanSegments(t *testing.T) {
	rows := rowsWithDiscordance(5, 5, 50, 50, 50, 5, 20, 20, 5)
	anomalies := Scan(rows, 15, false, ScanOptions{})

	if len(anomalies) != 2 {
		t.Fatalf("expected 2 anomalies, got %d: %+v", len(anomalies), anomalies)
	}

	first, second := anomalies[0], anomalies[1]
	if first.StartDepth != 2 || first.EndDepth != 4 || first.Rows != 3 {
		t.Errorf("first anomaly spans %.0f-%.0f (%d rows), expected 2-4 (3 rows)", first.StartDepth, first.EndDepth, first.Rows)
	}
	if math.Abs(first.AvgDiscordance-50) > 1e-9 || first.Severity != SeverityCritical {
		t.Errorf("first anomaly: expected avg 50 CRITICAL, got %.2f %s", first.AvgDiscordance, first.Severity)
	}
	if second.StartDepth != 6 || second.EndDepth != 7 || second.Rows != 2 {
		t.Errorf("second anomaly spans %.0f-%.0f (%d rows), expected 6-7 (2 rows)", second.StartDepth, second.EndDepth, second.Rows)
	}
	if math.Abs(second.AvgDiscordance-20) > 1e-9 || second.Severity != SeverityWarning {
		t.Errorf("second anomaly: expected avg 20 WARNING, got %.2f %s", second.AvgDiscordance, second.Severity)
	}
	for _, a := range anomalies {
		if a.Kind != KindDiscordance {
			t.Errorf("expected kind %s, got %s", KindDiscordance, a.Kind)
		}
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("expected unique ids, got %q and %q", first.ID, second.ID)
	}
}

func TestScanThresholdExcludesRowsBelow(t *testing.T) {
	rows := rowsWithDiscordance(5, 5, 50, 50, 50, 5, 20, 20, 5)
	anomalies := Scan(rows, 25, false, ScanOptions{})

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly above 25, got %d", len(anomalies))
	}
	if anomalies[0].StartDepth != 2 || anomalies[0].EndDepth != 4 {
		t.Errorf("unexpected span %.0f-%.0f", anomalies[0].StartDepth, anomalies[0].EndDepth)
	}
}

func TestScanSensitivity(t *testing.T) {
	// 19 is below 20 but above 20*0.9
	rows := rowsWithDiscordance(5, 19, 19, 5)

	if got := Scan(rows, 20, false, ScanOptions{}); len(got) != 0 {
		t.Errorf("expected no anomalies at threshold 20, got %d", len(got))
	}
	got := Scan(rows, 20, true, ScanOptions{})
	if len(got) != 1 || got[0].Rows != 2 {
		t.Errorf("expected one 2-row anomaly with sensitivity, got %+v", got)
	}
}

func TestScanEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		threshold float64
		expected  int
	}{
		{name: "empty", values: nil, threshold: 10, expected: 0},
		{name: "single qualifying row", values: []float64{99}, threshold: 10, expected: 1},
		{name: "run at end of data", values: []float64{1, 30, 30}, threshold: 10, expected: 1},
		{name: "equal to threshold is not above", values: []float64{10, 10}, threshold: 10, expected: 0},
		{name: "NaN threshold coerces to zero", values: []float64{0, 1, 0}, threshold: math.NaN(), expected: 1},
		{name: "alternating", values: []float64{30, 1, 30, 1, 30}, threshold: 10, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(rowsWithDiscordance(tt.values...), tt.threshold, false, ScanOptions{})
			if len(got) != tt.expected {
				t.Errorf("expected %d anomalies, got %d", tt.expected, len(got))
			}
		})
	}
}

func TestScanSkipsUnmatchedRows(t *testing.T) {
	rows := rowsWithDiscordance(30, 30, 30)
	rows[1].Comparison = nil
	rows[1].Discordance = 0

	got := Scan(rows, 10, false, ScanOptions{})
	if len(got) != 2 {
		t.Fatalf("expected the gap to split the run into 2 anomalies, got %d", len(got))
	}
}

func TestScanDetectVoids(t *testing.T) {
	rows := rowsWithDiscordance(1, 30, 0, 0, 0, 1, 0)
	for _, i := range []int{2, 3, 4, 6} {
		rows[i].Comparison = nil
	}

	if got := Scan(rows, 10, false, ScanOptions{}); len(got) != 1 {
		t.Fatalf("expected voids to be ignored by default, got %d anomalies", len(got))
	}

	got := Scan(rows, 10, false, ScanOptions{DetectVoids: true, MinVoidRows: 2})
	if len(got) != 2 {
		t.Fatalf("expected 1 discordance + 1 void anomaly, got %d: %+v", len(got), got)
	}
	if got[0].Kind != KindDiscordance || got[1].Kind != KindSignalVoid {
		t.Errorf("unexpected kinds %s, %s", got[0].Kind, got[1].Kind)
	}
	void := got[1]
	if void.StartDepth != 2 || void.EndDepth != 4 || void.Rows != 3 || void.Severity != SeverityMicro {
		t.Errorf("unexpected void anomaly %+v", void)
	}

	got = Scan(rows, 10, false, ScanOptions{DetectVoids: true})
	if len(got) != 3 {
		t.Errorf("expected trailing single-row void with MinVoidRows=1, got %d anomalies", len(got))
	}
}

func TestEffectiveThreshold(t *testing.T) {
	if got := EffectiveThreshold(25, true); math.Abs(got-22.5) > 1e-9 {
		t.Errorf("expected 22.5, got %.4f", got)
	}
	if got := EffectiveThreshold(-5, false); got != 0 {
		t.Errorf("expected negative threshold to coerce to 0, got %.4f", got)
	}
	if got := EffectiveThreshold(math.Inf(1), false); got != 0 {
		t.Errorf("expected infinite threshold to coerce to 0, got %.4f", got)
	}
}
