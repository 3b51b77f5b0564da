package target

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Source reads raw documents from the management API.
type Source interface {
	GetSite(ctx context.Context, id string) ([]byte, error)
	ListAppSettings(ctx context.Context, id string) ([]byte, error)
}

// Fetch reads the site and its settings concurrently and parses them into a
// fresh Target.
func Fetch(ctx context.Context, src Source, id string) (Target, error) {
	var site, settings []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if site, err = src.GetSite(gctx, id); err != nil {
			return fmt.Errorf("failed to get function app: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if settings, err = src.ListAppSettings(gctx, id); err != nil {
			return fmt.Errorf("failed to list app settings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Target{}, err
	}

	return Parse(site, settings)
}
