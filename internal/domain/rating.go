package domain

import "time"

// Channel records how the rated portion was ordered. Values are free text;
// the constants below are the ones the web client offers.
type Channel string

const (
	ChannelInStore   Channel = "instore"
	ChannelApp       Channel = "app"
	ChannelDoorDash  Channel = "doordash"
	ChannelUberEats  Channel = "ubereats"
	ChannelPostmates Channel = "postmates"
	ChannelGrubHub   Channel = "grubhub"
)

// Known reports whether c is one of the channels offered by the client.
func (c Channel) Known() bool {
	switch c {
	case ChannelInStore, ChannelApp, ChannelDoorDash, ChannelUberEats, ChannelPostmates, ChannelGrubHub:
		return true
	}
	return false
}

const (
	MinRatingValue = 1
	MaxRatingValue = 10
)

// Rating is a single anonymous portion-size rating for a site.
type Rating struct {
	ID        string
	SiteID    int64
	Value     int
	Channel   Channel
	CreatedAt time.Time
}

// RatingAggregate provides average and count for a site's ratings.
// Count == 0 means the site is unrated; Average is then exactly 0.
type RatingAggregate struct {
	Average float64
	Count   int64
}
