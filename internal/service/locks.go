package service

import (
	"context"
	"sort"

	"turfhub/internal/domain"
)

// lockAll acquires the locks in sorted order and returns one release func.
// Duplicate keys are taken once.
func lockAll(ctx context.Context, locker domain.Locker, keys ...string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		releases = append(releases, unlock)
	}
	return release, nil
}
