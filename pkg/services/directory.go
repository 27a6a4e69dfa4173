package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"DirectChat/models"
	"DirectChat/pkg/apperr"
	"DirectChat/pkg/cache"
	utils "DirectChat/pkg/utills"
)

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrInvalidRole  = apperr.Invalid("role must be one of user, employer, admin")
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// Directory looks users up for other services and for recipient search.
// Profiles are cached by id and invalidated on every write made through it.
type Directory struct {
	db       *gorm.DB
	online   OnlineChecker
	profiles *cache.Cache
	ttl      time.Duration
	now      func() time.Time
}

// NewDirectory wires the user directory. online and profiles may be nil.
func NewDirectory(db *gorm.DB, online OnlineChecker, profiles *cache.Cache, ttl time.Duration) *Directory {
	if online == nil {
		online = nobodyOnline{}
	}
	return &Directory{
		db:       db,
		online:   online,
		profiles: profiles,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SearchOptions struct {
	Query string
	Role  string
	Limit int
}

// SearchUsers finds candidate recipients for requesterID. Users active in
// the last RecentActivityWindow come first, then by last activity, then by
// username.
func (d *Directory) SearchUsers(ctx context.Context, requesterID uint, opts SearchOptions) ([]models.PublicProfile, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role != "" && !validRole(role) {
		return nil, ErrInvalidRole
	}

	q := d.db.WithContext(ctx).Model(&models.User{}).Where("id <> ?", requesterID)
	if query := strings.TrimSpace(opts.Query); query != "" {
		q = q.Where("search_text LIKE ? ESCAPE '"+utils.LikeEscapeChar+"'", utils.ContainsPattern(query))
	}
	if role != "" {
		q = q.Where("role = ?", role)
	}

	cutoff := d.now().Add(-models.RecentActivityWindow)
	var users []models.User
	err := q.
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "CASE WHEN last_active_at >= ? THEN 0 ELSE 1 END", Vars: []any{cutoff}}}).
		Order("CASE WHEN last_active_at IS NULL THEN 1 ELSE 0 END").
		Order("last_active_at DESC").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("failed to search users", err)
	}

	out := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		d.remember(users[i])
		out = append(out, d.publicProfile(ctx, users[i]))
	}
	return out, nil
}

func validRole(role string) bool {
	switch role {
	case models.RoleUser, models.RoleEmployer, models.RoleAdmin:
		return true
	}
	return false
}

// Profile returns the public profile of userID with its live presence flag.
func (d *Directory) Profile(ctx context.Context, userID uint) (models.PublicProfile, error) {
	u, err := d.User(ctx, userID)
	if err != nil {
		return models.PublicProfile{}, err
	}
	return d.publicProfile(ctx, u), nil
}

func (d *Directory) publicProfile(ctx context.Context, u models.User) models.PublicProfile {
	p := u.Public()
	p.IsOnline = d.online.IsOnline(ctx, u.ID)
	return p
}

// User loads one user through the profile cache.
func (d *Directory) User(ctx context.Context, userID uint) (models.User, error) {
	if v, ok := d.profiles.Get(cache.Key("user", userID)); ok {
		return v.(models.User), nil
	}
	var u models.User
	if err := d.db.WithContext(ctx).Take(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, apperr.Internal("failed to load user", err)
	}
	d.remember(u)
	return u, nil
}

// Users loads several users at once. Unknown ids are left out of the map.
func (d *Directory) Users(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	var missing []uint
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if v, ok := d.profiles.Get(cache.Key("user", id)); ok {
			out[id] = v.(models.User)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ?", missing).Find(&users).Error; err != nil {
		return nil, apperr.Internal("failed to load users", err)
	}
	for _, u := range users {
		d.remember(u)
		out[u.ID] = u
	}
	return out, nil
}

// Exists reports whether every id names a user.
func (d *Directory) Exists(ctx context.Context, ids ...uint) (bool, error) {
	users, err := d.Users(ctx, ids)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// TouchLastActive stamps the user's last activity with the current time.
func (d *Directory) TouchLastActive(ctx context.Context, userID uint) error {
	now := d.now()
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("last_active_at", now).Error
	d.Invalidate(userID)
	if err != nil {
		return apperr.Internal("failed to update activity", err)
	}
	return nil
}

func (d *Directory) Invalidate(userID uint) {
	d.profiles.Delete(cache.Key("user", userID))
}

func (d *Directory) remember(u models.User) {
	d.profiles.Set(cache.Key("user", u.ID), u, d.ttl)
}
