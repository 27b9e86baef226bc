package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary  = "Summary"
	sheetTasks    = "Tasks"
	sheetStudents = "Students"
	sheetTeams    = "Teams"
)

// RenderWorkbook lays the analytics out as an xlsx document with one sheet per view.
func RenderWorkbook(a Analytics) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{sheetTasks, sheetStudents, sheetTeams} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]interface{}{
		{"Room", a.RoomCode},
		{"Completed", a.CompletedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Class average score", a.ClassAverageScore},
		{"Class average accuracy (%)", a.ClassAverageAccuracy},
		{"Students", len(a.Students)},
		{"Tasks", len(a.Tasks)},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	tasks := [][]interface{}{{"#", "Prompt", "Submissions", "Correct", "Correct (%)"}}
	for _, t := range a.Tasks {
		tasks = append(tasks, []interface{}{t.Index + 1, t.Prompt, t.Submissions, t.Correct, t.AvgCorrectPct})
	}
	if err := writeRows(f, sheetTasks, tasks); err != nil {
		return nil, err
	}

	students := [][]interface{}{{"Player", "Team", "Attempts", "Correct", "Accuracy (%)", "Engagement (%)", "Avg time (ms)", "Speed", "Grade"}}
	for _, s := range a.Students {
		var avg interface{} = ""
		if s.AvgTimeMs != nil {
			avg = round1(*s.AvgTimeMs)
		}
		students = append(students, []interface{}{
			s.PlayerID, s.TeamID, s.Attempts, s.Correct,
			round1(s.Accuracy * 100), round1(s.Engagement * 100), avg,
			round1(s.SpeedScore * 100), s.Grade,
		})
	}
	if err := writeRows(f, sheetStudents, students); err != nil {
		return nil, err
	}

	teams := [][]interface{}{{"Rank", "Team", "Color", "Score"}}
	for i, t := range a.Teams {
		teams = append(teams, []interface{}{i + 1, t.Name, t.Color, t.Score})
	}
	if err := writeRows(f, sheetTeams, teams); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for idx, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}
		cells := row
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, idx+1, err)
		}
	}
	return nil
}
