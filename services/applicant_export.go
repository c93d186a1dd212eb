package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	applicantsSheetName = "Applicants"
)

var applicantExportHeader = []interface{}{
	"Team", "Status", "Captain", "Email", "Phone", "Members", "Team size",
	"eSewa number", "eSewa name", "Payment verified", "Payment proof", "Applied at",
}

// ApplicantExport — готовый XLSX-файл со списком заявок.
type ApplicantExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (s *registrationService) ExportApplicants(ctx context.Context, tournamentID uuid.UUID, actor *models.Identity) (*ApplicantExport, error) {
	t, err := s.loadManaged(ctx, tournamentID, actor)
	if err != nil {
		return nil, err
	}
	applicants, err := s.applicantRepo.ListByTournament(ctx, tournamentID, models.ApplicantFilter{})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	data, err := s.buildApplicantSheet(applicants)
	if err != nil {
		return nil, fmt.Errorf("failed to build applicant export: %w", err)
	}

	s.logger.InfoContext(ctx, "applicants exported",
		slog.String("tournament_id", tournamentID.String()),
		slog.Int("rows", len(applicants)))
	return &ApplicantExport{
		Filename:    fmt.Sprintf("%s-applicants.xlsx", t.Slug),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

func (s *registrationService) buildApplicantSheet(applicants []models.Applicant) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close spreadsheet", slog.Any("error", err))
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), applicantsSheetName); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(applicantsSheetName, "A1", &applicantExportHeader); err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(applicantsSheetName, 1, 1, headerStyle); err != nil {
		return nil, err
	}

	for i := range applicants {
		a := s.present(&applicants[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			a.TeamName,
			string(a.Status),
			a.Captain.Name,
			a.Captain.Email,
			a.Captain.Phone,
			memberNames(a.Members),
			1 + len(a.Members),
			a.Payment.EsewaNumber,
			a.Payment.EsewaName,
			a.Payment.Verified,
			a.Payment.ProofURL,
			a.AppliedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(applicantsSheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(applicantsSheetName, "A", "L", 22); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func memberNames(members []models.TeamMember) string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}
	return strings.Join(names, ", ")
}
