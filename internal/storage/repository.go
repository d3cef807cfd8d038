// Package storage provides repository implementations for webmonitor data models.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSite is returned when a site fails validation.
	ErrInvalidSite = errors.New("invalid site")
)

// Repositories groups the repositories for all models.
type Repositories struct {
	Sites  *SiteRepository
	Admins *AdminRepository
	Alerts *AlertRepository
}

// Repositories returns the repositories bound to this storage.
func (s *Storage) Repositories() *Repositories {
	return &Repositories{
		Sites:  &SiteRepository{db: s.db},
		Admins: &AdminRepository{db: s.db},
		Alerts: &AlertRepository{db: s.db},
	}
}

// SiteUpdate carries a partial site update. Nil fields are left untouched.
type SiteUpdate struct {
	Name                 *string
	URL                  *string
	IntervalSeconds      *int
	NotificationsEnabled *bool
	AutoMonitor          *bool
}

// SiteRepository persists sites and their response history.
type SiteRepository struct {
	db *gorm.DB
}

func historyOrder(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// List returns all sites with their history, oldest site first.
func (r *SiteRepository) List(ctx context.Context) ([]Site, error) {
	var sites []Site
	err := r.db.WithContext(ctx).
		Preload("History", historyOrder).
		Order("id ASC").
		Find(&sites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	return sites, nil
}

// Get returns a single site with its history.
func (r *SiteRepository) Get(ctx context.Context, id int64) (*Site, error) {
	return getSite(r.db.WithContext(ctx), id)
}

func getSite(db *gorm.DB, id int64) (*Site, error) {
	var site Site
	err := db.Preload("History", historyOrder).First(&site, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %d: %w", id, err)
	}
	return &site, nil
}

// Create inserts a new site. When site.ID is zero the current time in
// milliseconds is used, bumped until it does not collide with an existing site.
func (r *SiteRepository) Create(ctx context.Context, site *Site) error {
	if site.Status == "" {
		site.Status = StatusUnknown
	}
	site.Uptime = CalculateUptime(site.History)
	if err := site.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSite, err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if site.ID == 0 {
			site.ID = time.Now().UnixMilli()
		}
		for {
			var count int64
			if err := tx.Model(&Site{}).Where("id = ?", site.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check site id: %w", err)
			}
			if count == 0 {
				break
			}
			site.ID++
		}

		if err := tx.Omit(clause.Associations).Create(site).Error; err != nil {
			return fmt.Errorf("failed to create site: %w", err)
		}
		return nil
	})
}

// Update applies a partial update and returns the updated site.
func (r *SiteRepository) Update(ctx context.Context, id int64, upd SiteUpdate) (*Site, error) {
	var site *Site
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		site, err = getSite(tx, id)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			site.Name = *upd.Name
		}
		if upd.URL != nil {
			site.URL = *upd.URL
		}
		if upd.IntervalSeconds != nil {
			site.IntervalSeconds = *upd.IntervalSeconds
		}
		if upd.NotificationsEnabled != nil {
			site.NotificationsEnabled = *upd.NotificationsEnabled
		}
		if upd.AutoMonitor != nil {
			site.AutoMonitor = *upd.AutoMonitor
		}

		if err := site.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSite, err)
		}

		if err := tx.Omit(clause.Associations).Save(site).Error; err != nil {
			return fmt.Errorf("failed to update site %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// Delete removes a site together with its history and alert log.
func (r *SiteRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Site{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete site %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("site_id = ?", id).Delete(&ResponseRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete history of site %d: %w", id, err)
		}
		if err := tx.Where("site_id = ?", id).Delete(&AlertRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete alerts of site %d: %w", id, err)
		}
		return nil
	})
}

// AppendResult records a check result for a site.
//
// The record is appended to the history, the history is trimmed to the
// newest maxHistory entries, and the site's status, last checked time and
// uptime are recomputed from it.
//
// Parameters:
//   - ctx: Context for cancellation
//   - id: Site ID
//   - rec: Result to append; SiteID is filled in
//   - maxHistory: Rolling history cap
//
// Returns:
//   - *Site: Updated site with its trimmed history
//   - error: ErrNotFound if the site does not exist
func (r *SiteRepository) AppendResult(ctx context.Context, id int64, rec *ResponseRecord, maxHistory int) (*Site, error) {
	rec.SiteID = id
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid response record: %w", err)
	}

	var site *Site
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Site{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to look up site %d: %w", id, err)
		}
		if count == 0 {
			return ErrNotFound
		}

		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}

		if maxHistory > 0 {
			keep := tx.Model(&ResponseRecord{}).
				Select("id").
				Where("site_id = ?", id).
				Order("id DESC").
				Limit(maxHistory)
			if err := tx.Where("site_id = ? AND id NOT IN (?)", id, keep).Delete(&ResponseRecord{}).Error; err != nil {
				return fmt.Errorf("failed to trim history: %w", err)
			}
		}

		var err error
		site, err = getSite(tx, id)
		if err != nil {
			return err
		}

		lastChecked := rec.Time
		site.Status = rec.Status
		site.LastChecked = &lastChecked
		site.Uptime = CalculateUptime(site.History)

		err = tx.Model(&Site{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       site.Status,
			"last_checked": lastChecked,
			"uptime":       site.Uptime,
			"updated_at":   time.Now(),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update site %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// CalculateUptime returns the percentage of observed time during which the
// site was up, weighting each record by its response time (or 1 when the
// response time is zero). An empty history is 100% up. The result is
// rounded to two decimals.
func CalculateUptime(history []ResponseRecord) float64 {
	if len(history) == 0 {
		return 100
	}

	var total, up int64
	for _, h := range history {
		elapsed := h.Ms
		if elapsed <= 0 {
			elapsed = 1
		}
		total += elapsed
		if h.Status == StatusUp {
			up += elapsed
		}
	}

	return math.Round(float64(up)/float64(total)*100*100) / 100
}

// AdminRepository persists the dashboard administrator.
type AdminRepository struct {
	db *gorm.DB
}

// Ensure creates the admin account if it does not exist, or resets its
// password hash when the configured password no longer matches.
func (r *AdminRepository) Ensure(ctx context.Context, username, password string) error {
	db := r.db.WithContext(ctx)

	var admin Admin
	err := db.First(&admin, "username = ?", username).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	exists := err == nil

	if exists && bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)) == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin.Username = username
	admin.Password = string(hash)
	if err := admin.Validate(); err != nil {
		return fmt.Errorf("invalid admin: %w", err)
	}

	if exists {
		if err := db.Save(&admin).Error; err != nil {
			return fmt.Errorf("failed to update admin: %w", err)
		}
		log.Info().Str("username", username).Msg("Admin password updated from configuration")
		return nil
	}

	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	log.Info().Str("username", username).Msg("Admin account created")
	return nil
}

// Verify reports whether the credentials match the stored admin account.
func (r *AdminRepository) Verify(ctx context.Context, username, password string) (bool, error) {
	var admin Admin
	err := r.db.WithContext(ctx).First(&admin, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// AlertRepository persists the alert delivery log.
type AlertRepository struct {
	db *gorm.DB
}

// Record appends an alert delivery attempt.
func (r *AlertRepository) Record(ctx context.Context, rec *AlertRecord) error {
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// ListBySite returns the newest alert records for a site, newest first.
func (r *AlertRepository) ListBySite(ctx context.Context, siteID int64, limit int) ([]AlertRecord, error) {
	var records []AlertRecord
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return records, nil
}
