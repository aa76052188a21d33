package postgres

import (
	"strings"

	"github.com/chrissnell/welltie/internal/narrative"
	"github.com/chrissnell/welltie/internal/storage"
)

// causeSeparator joins PotentialCauses into a single text column
const causeSeparator = "\n"

func toRow(rec storage.ArchivedReport) AuditReport {
	return AuditReport{
		ID:                   rec.ID,
		Kind:                 rec.Kind,
		StartDepth:           rec.StartDepth,
		EndDepth:             rec.EndDepth,
		AvgDiscordance:       rec.AvgDiscordance,
		Nature:               rec.Report.Nature,
		PotentialCauses:      strings.Join(rec.Report.PotentialCauses, causeSeparator),
		Remediation:          rec.Report.Remediation,
		TechnicalDeduction:   rec.Report.TechnicalDeduction,
		RegulatoryConstraint: rec.Report.RegulatoryConstraint,
		ImpactSummary:        rec.Report.ImpactSummary,
		ArchivedAt:           rec.ArchivedAt,
	}
}

func fromRow(r AuditReport) storage.ArchivedReport {
	var causes []string
	if r.PotentialCauses != "" {
		causes = strings.Split(r.PotentialCauses, causeSeparator)
	}
	return storage.ArchivedReport{
		ID:             r.ID,
		Kind:           r.Kind,
		StartDepth:     r.StartDepth,
		EndDepth:       r.EndDepth,
		AvgDiscordance: r.AvgDiscordance,
		Report: narrative.Report{
			Nature:               r.Nature,
			PotentialCauses:      causes,
			Remediation:          r.Remediation,
			TechnicalDeduction:   r.TechnicalDeduction,
			RegulatoryConstraint: r.RegulatoryConstraint,
			ImpactSummary:        r.ImpactSummary,
		},
		ArchivedAt: r.ArchivedAt,
	}
}
