package metrics

import "time"

// IndexStats describes the one-time index build performed at startup.
type IndexStats struct {
	Records       int           `json:"records"`
	Dimensions    int           `json:"dimensions"`
	Backend       string        `json:"backend"`
	Model         string        `json:"model"`
	Version       string        `json:"version"`
	BuildDuration time.Duration `json:"-"`
	BuildMs       int64         `json:"buildMs"`
}

// IsZero reports whether no index has been built.
func (s IndexStats) IsZero() bool {
	return s.Records == 0 && s.Dimensions == 0 && s.Backend == ""
}
