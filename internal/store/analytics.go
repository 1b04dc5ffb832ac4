package store

import (
	"encoding/json"
	"time"
)

// Analytics is a bag of session counters. Deltas are merged field-wise so two
// code paths racing across an async gap both land.
type Analytics struct {
	Likes        int `json:"likes"`
	Nopes        int `json:"nopes"`
	Matches      int `json:"matches"`
	MessagesSent int `json:"messages_sent"`
}

func (a Analytics) add(d Analytics) Analytics {
	a.Likes += d.Likes
	a.Nopes += d.Nopes
	a.Matches += d.Matches
	a.MessagesSent += d.MessagesSent
	return a
}

// Total sums all swipe counters
func (a Analytics) Total() int {
	return a.Likes + a.Nopes
}

// Today returns the ISO date key for the current session bucket
func Today() string {
	return time.Now().Format("2006-01-02")
}

// AddSessionAnalytics merges a delta into today's session bucket.
// Session analytics are keyed by ISO date so a bucket naturally expires at
// midnight without an explicit reset write.
func (s *Store) AddSessionAnalytics(day string, delta Analytics) error {
	return s.Update(KeySessionAnalytics, func(raw []byte) (any, error) {
		days := map[string]Analytics{}
		if raw != nil {
			if err := json.Unmarshal(raw, &days); err != nil {
				return nil, err
			}
		}
		days[day] = days[day].add(delta)
		return days, nil
	})
}

// SessionAnalytics returns the bucket for the given day
func (s *Store) SessionAnalytics(day string) (Analytics, error) {
	days := map[string]Analytics{}
	if _, err := s.Get(KeySessionAnalytics, &days); err != nil {
		return Analytics{}, err
	}
	return days[day], nil
}

// ResetSessionAnalytics zeroes the bucket for the given day
func (s *Store) ResetSessionAnalytics(day string) error {
	return s.Update(KeySessionAnalytics, func(raw []byte) (any, error) {
		days := map[string]Analytics{}
		if raw != nil {
			if err := json.Unmarshal(raw, &days); err != nil {
				return nil, err
			}
		}
		days[day] = Analytics{}
		return days, nil
	})
}

// PruneSessionAnalytics drops day buckets older than keep days
func (s *Store) PruneSessionAnalytics(keep int) error {
	cutoff := time.Now().AddDate(0, 0, -keep).Format("2006-01-02")
	return s.Update(KeySessionAnalytics, func(raw []byte) (any, error) {
		days := map[string]Analytics{}
		if raw != nil {
			if err := json.Unmarshal(raw, &days); err != nil {
				return nil, err
			}
		}
		for day := range days {
			if day < cutoff {
				delete(days, day)
			}
		}
		return days, nil
	})
}

// AddAllTimeAnalytics merges a delta into the lifetime totals
func (s *Store) AddAllTimeAnalytics(delta Analytics) error {
	return s.Update(KeyAllTimeAnalytics, func(raw []byte) (any, error) {
		var total Analytics
		if raw != nil {
			if err := json.Unmarshal(raw, &total); err != nil {
				return nil, err
			}
		}
		return total.add(delta), nil
	})
}

// AllTimeAnalytics returns the lifetime totals
func (s *Store) AllTimeAnalytics() (Analytics, error) {
	var total Analytics
	if _, err := s.Get(KeyAllTimeAnalytics, &total); err != nil {
		return Analytics{}, err
	}
	return total, nil
}
