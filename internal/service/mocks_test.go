package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
)

type mockGeocoder struct{ mock.Mock }

func (m *mockGeocoder) Resolve(ctx context.Context, address string) ([]domain.Coordinate, error) {
	args := m.Called(ctx, address)
	coords, _ := args.Get(0).([]domain.Coordinate)
	return coords, args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.Site, error) {
	args := m.Called(ctx, center, radiusMeters)
	sites, _ := args.Get(0).([]domain.Site)
	return sites, args.Error(1)
}

type mockRatingStore struct{ mock.Mock }

func (m *mockRatingStore) ListBySite(ctx context.Context, siteID int64) ([]domain.Rating, error) {
	args := m.Called(ctx, siteID)
	ratings, _ := args.Get(0).([]domain.Rating)
	return ratings, args.Error(1)
}

func (m *mockRatingStore) Insert(ctx context.Context, rating domain.Rating) error {
	return m.Called(ctx, rating).Error(0)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Check(ctx context.Context, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}
