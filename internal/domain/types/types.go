// Package types contains common types used across the application
package types

// Entry represents one line of a ranking report
type Entry struct {
	Rank  int     `json:"rank"`
	CVE   string  `json:"cve"`
	Start float64 `json:"epss_start"`
	End   float64 `json:"epss_end"`
	Delta float64 `json:"increase"`
}

// Report is the machine-readable form of a comparison
type Report struct {
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Requested int     `json:"requested"`
	Clamped   bool    `json:"clamped"`
	Entries   []Entry `json:"entries"`
}
