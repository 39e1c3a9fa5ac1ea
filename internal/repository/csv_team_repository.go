package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

// CSV column names.
const (
	ColumnTeam         = "team"
	ColumnParentTeam   = "parent_team"
	ColumnManagerName  = "manager_name"
	ColumnBusinessUnit = "business_unit"
)

var requiredColumns = []string{ColumnTeam, ColumnParentTeam, ColumnManagerName}

// TeamSourceRepository loads flat team records from an uploaded source.
type TeamSourceRepository interface {
	Load(ctx context.Context, src io.Reader) ([]domain.Team, error)
}

type csvTeamRepository struct{}

// NewCSVTeamRepository returns a loader for comma separated files with a
// header row.
func NewCSVTeamRepository() TeamSourceRepository {
	return &csvTeamRepository{}
}

func (r *csvTeamRepository) Load(ctx context.Context, src io.Reader) ([]domain.Team, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		columns map[string]int
		teams   []domain.Team
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blankRow(row) {
			continue
		}

		if columns == nil {
			columns, err = headerIndex(row)
			if err != nil {
				return nil, err
			}
			continue
		}

		team := domain.Team{
			TeamName:    field(row, columns, ColumnTeam),
			ParentTeam:  field(row, columns, ColumnParentTeam),
			ManagerName: field(row, columns, ColumnManagerName),
		}
		if _, ok := columns[ColumnBusinessUnit]; ok {
			if bu := field(row, columns, ColumnBusinessUnit); bu != "" {
				team.BusinessUnit = &bu
			}
		}
		teams = append(teams, team)
	}

	if columns == nil {
		return nil, &domain.CSVHeaderError{Header: ColumnTeam}
	}
	return teams, nil
}

func headerIndex(row []string) (map[string]int, error) {
	columns := make(map[string]int, len(row))
	for i, h := range row {
		name := strings.ToLower(normalize(h))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	for _, must := range requiredColumns {
		if _, ok := columns[must]; !ok {
			return nil, &domain.CSVHeaderError{Header: must}
		}
	}
	return columns, nil
}

func field(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return normalize(row[i])
}

func normalize(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(norm.NFC.String(s))
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
