package canvas

import (
	"sort"

	"clynto/backend/pkg/models"
)

// RevenueCell is one account-month of the projection-vs-collection matrix.
type RevenueCell struct {
	Month     string           `json:"month"`
	Projected float64          `json:"projected"`
	Collected float64          `json:"collected"`
	Gap       float64          `json:"gap"`
	Variance  *models.Variance `json:"variance,omitempty"`
}

// RevenueRow is one account across all months of the matrix.
type RevenueRow struct {
	AccountID      string        `json:"account_id"`
	AccountName    string        `json:"account_name"`
	Cells          []RevenueCell `json:"cells"`
	TotalProjected float64       `json:"total_projected"`
	TotalCollected float64       `json:"total_collected"`
}

// RevenueMatrix is the revenue page: accounts by months.
type RevenueMatrix struct {
	Months         []string     `json:"months"`
	Rows           []RevenueRow `json:"rows"`
	TotalProjected float64      `json:"total_projected"`
	TotalCollected float64      `json:"total_collected"`
}

// BuildRevenueMatrix pivots entries into a matrix. Months are sorted
// ascending and every row has a cell for every month; months without an
// entry are zero cells. Rows are sorted by account name. A non-empty account
// filter keeps one account, matched by id or name.
func BuildRevenueMatrix(entries []models.RevenueEntry, account string) RevenueMatrix {
	monthSet := make(map[string]bool)
	rowsByID := make(map[string]*RevenueRow)
	cells := make(map[string]map[string]RevenueCell)

	for _, e := range entries {
		if !matchAccount(e.AccountID, e.AccountName, account) {
			continue
		}
		monthSet[e.Month] = true
		row, ok := rowsByID[e.AccountID]
		if !ok {
			row = &RevenueRow{AccountID: e.AccountID, AccountName: e.AccountName}
			rowsByID[e.AccountID] = row
			cells[e.AccountID] = make(map[string]RevenueCell)
		}
		c := cells[e.AccountID][e.Month]
		c.Month = e.Month
		c.Projected += e.Projected
		c.Collected += e.Collected
		c.Gap = c.Collected - c.Projected
		if e.Variance != nil {
			v := *e.Variance
			c.Variance = &v
		}
		cells[e.AccountID][e.Month] = c
	}

	m := RevenueMatrix{Months: make([]string, 0, len(monthSet)), Rows: make([]RevenueRow, 0, len(rowsByID))}
	for month := range monthSet {
		m.Months = append(m.Months, month)
	}
	sort.Strings(m.Months)

	for id, row := range rowsByID {
		for _, month := range m.Months {
			c, ok := cells[id][month]
			if !ok {
				c = RevenueCell{Month: month}
			}
			row.Cells = append(row.Cells, c)
			row.TotalProjected += c.Projected
			row.TotalCollected += c.Collected
		}
		m.TotalProjected += row.TotalProjected
		m.TotalCollected += row.TotalCollected
		m.Rows = append(m.Rows, *row)
	}
	sort.Slice(m.Rows, func(i, j int) bool { return m.Rows[i].AccountName < m.Rows[j].AccountName })
	return m
}
