package domain

import (
	"sort"
	"time"
)

// Profile is a user's credit balance
type Profile struct {
	UserID           string     `db:"user_id"`
	Email            string     `db:"email"`
	Credits          int        `db:"credits"`
	CreditsExpiresAt *time.Time `db:"credits_expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Tier is a static catalog entry for recharges
type Tier struct {
	Key        string        `yaml:"key" json:"key"`
	Name       string        `yaml:"name" json:"name"`
	Credits    int           `yaml:"credits" json:"credits"`
	PriceCents int           `yaml:"price_cents" json:"price_cents"`
	Validity   time.Duration `yaml:"validity" json:"validity,omitempty"`
}

// DefaultTiers is the catalog used when none is configured
var DefaultTiers = []Tier{
	{Key: "standard", Name: "Standard", Credits: 50, PriceCents: 2900},
	{Key: "pro", Name: "Pro", Credits: 200, PriceCents: 9900},
	{Key: "enterprise", Name: "Enterprise", Credits: 1000, PriceCents: 39900},
}

// Catalog looks tiers up by key
type Catalog struct {
	tiers map[string]Tier
}

// NewCatalog builds a catalog, falling back to DefaultTiers when tiers is empty
func NewCatalog(tiers []Tier) *Catalog {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	c := &Catalog{tiers: make(map[string]Tier, len(tiers))}
	for _, t := range tiers {
		c.tiers[t.Key] = t
	}
	return c
}

// Lookup returns the tier for key
func (c *Catalog) Lookup(key string) (Tier, error) {
	t, ok := c.tiers[key]
	if !ok {
		return Tier{}, ErrUnknownTier
	}
	return t, nil
}

// List returns tiers ordered by credit amount
func (c *Catalog) List() []Tier {
	out := make([]Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Credits < out[j].Credits })
	return out
}

// ExtendExpiry computes a new expiry after a recharge with the given validity.
// A zero validity keeps the current expiry.
func ExtendExpiry(current *time.Time, validity time.Duration, now time.Time) *time.Time {
	if validity <= 0 {
		return current
	}
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	next := base.Add(validity)
	return &next
}

// Expired reports whether an expiry has elapsed at now
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !expiresAt.After(now)
}
