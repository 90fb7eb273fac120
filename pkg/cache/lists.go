// Package cache keeps short-lived copies of the upstream phone and group
// lists. The upstream backend is the source of truth; the staleness window
// only amortizes reads, and every mutation explicitly invalidates so the
// operator sees their own action immediately instead of waiting for expiry.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/solvane/phonefleet-console/pkg/models"
)

const listKey = "all"

// Loader is the slice of the upstream client the cache refreshes from.
type Loader interface {
	ListPhones(ctx context.Context) ([]models.Phone, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
}

type Lists struct {
	loader Loader
	phones *ttlcache.Cache[string, []models.Phone]
	groups *ttlcache.Cache[string, []models.Group]

	// onChange fires after an invalidation so live views can refresh.
	onChange func()
}

func NewLists(loader Loader, ttl time.Duration, onChange func()) *Lists {
	phones := ttlcache.New[string, []models.Phone](
		ttlcache.WithTTL[string, []models.Phone](ttl),
	)
	groups := ttlcache.New[string, []models.Group](
		ttlcache.WithTTL[string, []models.Group](ttl),
	)
	go phones.Start()
	go groups.Start()
	return &Lists{
		loader:   loader,
		phones:   phones,
		groups:   groups,
		onChange: onChange,
	}
}

// Phones returns the cached phone list, refreshing it from upstream when the
// staleness window has passed.
func (l *Lists) Phones(ctx context.Context) ([]models.Phone, error) {
	if item := l.phones.Get(listKey); item != nil {
		return item.Value(), nil
	}
	phones, err := l.loader.ListPhones(ctx)
	if err != nil {
		return nil, err
	}
	l.phones.Set(listKey, phones, ttlcache.DefaultTTL)
	return phones, nil
}

func (l *Lists) Groups(ctx context.Context) ([]models.Group, error) {
	if item := l.groups.Get(listKey); item != nil {
		return item.Value(), nil
	}
	groups, err := l.loader.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	l.groups.Set(listKey, groups, ttlcache.DefaultTTL)
	return groups, nil
}

// Invalidate drops both lists and notifies listeners. Called after any
// mutating call that reported at least one success.
func (l *Lists) Invalidate() {
	l.phones.DeleteAll()
	l.groups.DeleteAll()
	if l.onChange != nil {
		l.onChange()
	}
}

// Stop shuts down the expiry janitors.
func (l *Lists) Stop() {
	l.phones.Stop()
	l.groups.Stop()
}
