package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/validate"
)

func (s *Service) ShopProfile(ctx context.Context) (domain.ShopProfile, error) {
	if _, err := s.authorize(ctx, OpViewSettings); err != nil {
		return domain.ShopProfile{}, err
	}
	return s.repo.GetShopProfile(ctx)
}

func (s *Service) UpdateShopProfile(ctx context.Context, profile domain.ShopProfile) (domain.ShopProfile, error) {
	actor, err := s.authorize(ctx, OpUpdateSettings)
	if err != nil {
		return domain.ShopProfile{}, err
	}

	profile.Name = strings.TrimSpace(profile.Name)
	profile.Address = strings.TrimSpace(profile.Address)
	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.Terms = strings.TrimSpace(profile.Terms)
	if err := validate.Struct(profile); err != nil {
		return domain.ShopProfile{}, err
	}

	if err := s.repo.UpdateShopProfile(ctx, profile); err != nil {
		return domain.ShopProfile{}, err
	}
	log.Info().Str("actor", actor.Username).Str("shop", profile.Name).Msg("shop profile updated")
	return profile, nil
}
