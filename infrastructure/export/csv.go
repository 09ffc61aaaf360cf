package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rios0rios0/repoinventory/domain"
)

// Sentinel cell values for measurements that could not be produced.
const (
	cellUnknown       = "Unknown"
	cellError         = "Error"
	cellNotApplicable = "N/A"
)

// membershipSeparator joins identity lists inside a single cell.
const membershipSeparator = "; "

// inventoryHeader is the fixed, stable column set of the repository export.
var inventoryHeader = []string{
	"Organization",
	"Project",
	"BackendKind",
	"RepoName",
	"BranchCount",
	"TotalSizeKB",
	"TotalSizeMB",
	"FileCount",
	"LargestFileSizeKB",
	"LastModified",
}

// usersHeader is the column set of the users-inventory export.
var usersHeader = []string{
	"Organization",
	"Project",
	"MemberCount",
	"Members",
	"AdminCount",
	"Admins",
}

// WriteInventoryCSV sorts the records by organization, project, and
// repository name, then writes the tabular export.
func WriteInventoryCSV(w io.Writer, records []domain.RepositoryRecord) error {
	sorted := append([]domain.RepositoryRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Organization != b.Organization {
			return a.Organization < b.Organization
		}
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		return a.RepoName < b.RepoName
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(inventoryHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range sorted {
		row := []string{
			rec.Organization,
			rec.Project,
			string(rec.Kind),
			rec.RepoName,
			branchCell(rec),
			sizeKBCell(rec.SizeBytes, rec.Err),
			sizeMBCell(rec.SizeBytes, rec.Err),
			metricCell(rec.FileCount, rec.Err),
			sizeKBCell(rec.LargestFileSize, rec.Err),
			timeCell(rec.LastModified),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUsersCSV writes the users-inventory export with member and admin
// lists joined into single cells.
func WriteUsersCSV(w io.Writer, records []domain.MembershipRecord) error {
	sorted := append([]domain.MembershipRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Organization != b.Organization {
			return a.Organization < b.Organization
		}
		return a.Project < b.Project
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(usersHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range sorted {
		row := []string{
			rec.Organization,
			rec.Project,
			strconv.Itoa(len(rec.Members)),
			strings.Join(rec.Members, membershipSeparator),
			strconv.Itoa(len(rec.Admins)),
			strings.Join(rec.Admins, membershipSeparator),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// branchCell renders the branch count; backends with no branch concept get
// N/A rather than Unknown.
func branchCell(rec domain.RepositoryRecord) string {
	if rec.Kind != domain.ModernVCS {
		return cellNotApplicable
	}
	return metricCell(rec.BranchCount, rec.Err)
}

// metricCell renders a tri-state count: the number when determined, Error
// when collection failed outright, Unknown otherwise.
func metricCell(m domain.Metric, collectErr error) string {
	if m.Determined() {
		return strconv.FormatInt(m.Int64(), 10)
	}
	if collectErr != nil {
		return cellError
	}
	return cellUnknown
}

// sizeKBCell renders a byte metric as whole kilobytes, rounded up.
func sizeKBCell(m domain.Metric, collectErr error) string {
	if m.Determined() {
		return strconv.FormatInt(ceilKB(m.Int64()), 10)
	}
	if collectErr != nil {
		return cellError
	}
	return cellUnknown
}

// sizeMBCell renders a byte metric as megabytes with two decimals.
func sizeMBCell(m domain.Metric, collectErr error) string {
	if m.Determined() {
		return fmt.Sprintf("%.2f", float64(m.Int64())/(1024*1024))
	}
	if collectErr != nil {
		return cellError
	}
	return cellUnknown
}

func timeCell(ts domain.Timestamp) string {
	if t, ok := ts.Time(); ok {
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	}
	return cellUnknown
}

// ceilKB converts bytes to kilobytes rounded up, matching the exported
// KB figures of the inventory format.
func ceilKB(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	return (bytes + 1023) / 1024
}
