package quota

import "time"

// Quota represents a user's storage allowance snapshot for the current period.
type Quota struct {
	Plan       string    `json:"plan"`
	DocLimit   int       `json:"docLimit"`
	DocsUsed   int       `json:"docsUsed"`
	BytesLimit int64     `json:"bytesLimit"`
	BytesUsed  int64     `json:"bytesUsed"`
	ResetsAt   time.Time `json:"resetsAt"`
}

// Defaults seed a quota row for a user seen for the first time. The numbers
// are configuration, not contracts.
type Defaults struct {
	Plan       string
	DocLimit   int
	BytesLimit int64
}

func (d Defaults) normalized() Defaults {
	out := d
	if out.Plan == "" {
		out.Plan = "Starter"
	}
	if out.DocLimit <= 0 {
		out.DocLimit = 25
	}
	if out.BytesLimit <= 0 {
		out.BytesLimit = 200 << 20
	}
	return out
}

func (d Defaults) newQuota(now time.Time) Quota {
	n := d.normalized()
	return Quota{
		Plan:       n.Plan,
		DocLimit:   n.DocLimit,
		BytesLimit: n.BytesLimit,
		ResetsAt:   nextPeriod(now),
	}
}

func nextPeriod(now time.Time) time.Time {
	return now.UTC().AddDate(0, 1, 0)
}
