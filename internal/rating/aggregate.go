// Package rating computes per-site rating statistics.
package rating

import "github.com/Clark-Hu/portion-finder/internal/domain"

// Aggregate returns the mean and count of the ratings that belong to siteID.
// Ratings for other sites are ignored. With no matching ratings the result is
// the zero aggregate; callers tell "unrated" apart by Count, not Average.
func Aggregate(siteID int64, ratings []domain.Rating) domain.RatingAggregate {
	var (
		sum   int64
		count int64
	)
	for _, r := range ratings {
		if r.SiteID != siteID {
			continue
		}
		sum += int64(r.Value)
		count++
	}
	if count == 0 {
		return domain.RatingAggregate{}
	}
	return domain.RatingAggregate{
		Average: float64(sum) / float64(count),
		Count:   count,
	}
}
