package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/questionbox/internal/db"
	"github.com/xuri/excelize/v2"
)

// ExportSheetName 是导出的 Excel 工作表名。
const ExportSheetName = "질문목록"

var ErrNothingToExport = errors.New("no questions to export")

var exportHeader = []string{"id", "name", "question", "timestamp", "likes"}

// ExportService 把问题导出为 CSV 或 Excel。
type ExportService struct {
	location *time.Location
	now      func() time.Time
}

// NewExportService creates an ExportService; file names use loc.
func NewExportService(loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{location: loc, now: time.Now}
}

// WithClock 允许测试固定当前时间。
func (s *ExportService) WithClock(now func() time.Time) *ExportService {
	if now != nil {
		s.now = now
	}
	return s
}

// Filename returns questions_YYYYMMDD_HHMMSS.<ext>.
func (s *ExportService) Filename(ext string) string {
	return fmt.Sprintf("questions_%s.%s", s.now().In(s.location).Format("20060102_150405"), ext)
}

// CSV 输出带 BOM 的 UTF-8 CSV，便于表格软件直接打开韩文内容。
func (s *ExportService) CSV(questions []db.Question) ([]byte, error) {
	if len(questions) == 0 {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")

	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, q := range questions {
		row := []string{strconv.Itoa(q.ID), q.Author, q.Body, q.Timestamp, strconv.Itoa(q.Likes)}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Excel 输出只有一个工作表的 xlsx 文件。
func (s *ExportService) Excel(questions []db.Question) ([]byte, error) {
	if len(questions) == 0 {
		return nil, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheetName); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(exportHeader))
	for i, name := range exportHeader {
		header[i] = name
	}
	if err := f.SetSheetRow(ExportSheetName, "A1", &header); err != nil {
		return nil, err
	}

	for i, q := range questions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{q.ID, q.Author, q.Body, q.Timestamp, q.Likes}
		if err := f.SetSheetRow(ExportSheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
