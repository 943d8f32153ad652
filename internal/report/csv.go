package report

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/gocarina/gocsv"

	"workshopportal/internal/model"
)

// CSVFileName is the name used for downloads and for exports written to disk.
const CSVFileName = "registered_students.csv"

// Row is one exported registration. Field order is the column order.
type Row struct {
	Name        string `csv:"Name"`
	Email       string `csv:"Email"`
	Phone       string `csv:"Phone"`
	Institution string `csv:"Institution"`
	Course      string `csv:"Course"`
	Workshop    string `csv:"Workshop"`
	Referrer    string `csv:"Referrer"`
}

// Header lists the export columns in order, as declared by Row's csv tags.
func Header() []string {
	t := reflect.TypeOf(Row{})
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		cols = append(cols, t.Field(i).Tag.Get("csv"))
	}
	return cols
}

func Rows(regs []model.Registration) []Row {
	rows := make([]Row, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, Row{
			Name:        r.Name,
			Email:       r.Email,
			Phone:       r.Phone,
			Institution: r.Institution,
			Course:      r.Course,
			Workshop:    r.Workshop,
			Referrer:    r.ReferrerOrEmpty(),
		})
	}
	return rows
}

// ToCSV serialises regs as a header line followed by one row per
// registration. An empty input still produces the header.
func ToCSV(regs []model.Registration) ([]byte, error) {
	rows := Rows(regs)
	if len(rows) == 0 {
		return []byte(strings.Join(Header(), ",") + "\n"), nil
	}
	out, err := gocsv.MarshalBytes(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return out, nil
}

// WriteCSVFile writes the export into dir and returns the file path.
func WriteCSVFile(dir string, regs []model.Registration) (string, error) {
	data, err := ToCSV(regs)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, CSVFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write csv export: %w", err)
	}
	return path, nil
}
