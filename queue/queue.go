// Package queue reads and updates a tenant's keyword worksheet.
//
// A worksheet row is (keyword, status, result_link, note). Row 1 is a header;
// data starts at DataStartRow.
package queue

import (
	"errors"
	"strings"
)

// DataStartRow is the worksheet row number of the first data row.
const DataStartRow = 2

// ErrNoRows is returned when a row identifier does not address a data row.
var ErrNoRows = errors.New("no such row")

// KeywordTask is one pending keyword and the row it came from.
type KeywordTask struct {
	Row     int
	Keyword string
}

// Link is a published article usable as an internal link target.
type Link struct {
	Keyword string
	URL     string
}

// Options are the status values written to and recognized in the worksheet.
type Options struct {
	DoneStatus    string
	PendingMarker string
	GrowthMarker  string
}

func (o Options) withDefaults() Options {
	if o.DoneStatus == "" {
		o.DoneStatus = "Done"
	}
	if o.PendingMarker == "" {
		o.PendingMarker = "Pendente"
	}
	if o.GrowthMarker == "" {
		o.GrowthMarker = "Sugestão IA"
	}
	return o
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// PendingRows returns the rows whose keyword is non-empty and whose status is
// blank or equal to pendingMarker. rows[0] is worksheet row firstRow.
func PendingRows(rows [][]string, firstRow int, pendingMarker string) []KeywordTask {
	var tasks []KeywordTask
	for i, row := range rows {
		keyword := strings.TrimSpace(cell(row, 0))
		if keyword == "" {
			continue
		}
		status := strings.TrimSpace(cell(row, 1))
		if status != "" && (pendingMarker == "" || !strings.EqualFold(status, pendingMarker)) {
			continue
		}
		tasks = append(tasks, KeywordTask{Row: firstRow + i, Keyword: keyword})
	}
	return tasks
}

// CompletedLinks returns {keyword, url} for rows marked doneStatus whose link
// looks like a URL.
func CompletedLinks(rows [][]string, doneStatus string) []Link {
	var links []Link
	for _, row := range rows {
		keyword := strings.TrimSpace(cell(row, 0))
		status := strings.TrimSpace(cell(row, 1))
		url := strings.TrimSpace(cell(row, 2))
		if keyword == "" || !strings.EqualFold(status, doneStatus) || !strings.HasPrefix(url, "http") {
			continue
		}
		links = append(links, Link{Keyword: keyword, URL: url})
	}
	return links
}

// growthRows shapes suggestions as new worksheet rows, skipping blanks.
func growthRows(topics []string, opts Options) [][]string {
	var rows [][]string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			rows = append(rows, []string{t, opts.PendingMarker, "", opts.GrowthMarker})
		}
	}
	return rows
}
