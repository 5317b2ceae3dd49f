package store

import (
	"errors"
	"time"

	"github.com/algofinserve/stock-alerts/internal/models"
	"gorm.io/gorm"
)

// Store is the persistence contract the pipeline depends on. The gorm
// implementation below is the production one; tests substitute in-memory
// fakes.
type Store interface {
	SaveAlert(ev *models.AlertEvent) error
	AlertsBySymbol(symbol string) ([]models.AlertEvent, error)
	RecentAlerts(limit, offset int) ([]models.AlertEvent, error)
	StockHistory(symbol string, days, limit int) ([]models.AlertEvent, error)
	AllAlerts() ([]models.AlertEvent, error)
	UpdateSinceDays(id uint, sinceDays int) error

	SaveRecommendation(rec *models.TradeRecommendation) error
	RecommendationByID(id uint) (*models.TradeRecommendation, error)
	ActiveRecommendation(symbol string, dir models.Direction, d models.TradeDuration) (*models.TradeRecommendation, error)
	ActiveRecommendations(symbol string) ([]models.TradeRecommendation, error)

	Transaction(fn func(Store) error) error
}

// GormStore is the gorm-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveAlert inserts or updates an alert event.
func (s *GormStore) SaveAlert(ev *models.AlertEvent) error {
	return s.db.Save(ev).Error
}

// AlertsBySymbol returns all events for a symbol, newest first.
func (s *GormStore) AlertsBySymbol(symbol string) ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := s.db.Where("symbol = ?", symbol).
		Order("alert_date DESC").
		Find(&events).Error
	return events, err
}

// RecentAlerts returns events newest first with pagination.
func (s *GormStore) RecentAlerts(limit, offset int) ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := s.db.Order("alert_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, err
}

// StockHistory returns a symbol's events newest first, optionally restricted
// to the trailing number of days. days <= 0 means no restriction.
func (s *GormStore) StockHistory(symbol string, days, limit int) ([]models.AlertEvent, error) {
	query := s.db.Where("symbol = ?", symbol)
	if days > 0 {
		after := time.Now().AddDate(0, 0, -days)
		query = query.Where("alert_date > ?", after)
	}

	var events []models.AlertEvent
	err := query.Order("alert_date DESC").Limit(limit).Find(&events).Error
	return events, err
}

// AllAlerts returns every stored event, oldest first.
func (s *GormStore) AllAlerts() ([]models.AlertEvent, error) {
	var events []models.AlertEvent
	err := s.db.Order("alert_date ASC").Find(&events).Error
	return events, err
}

// UpdateSinceDays rewrites the derived streak field for one event.
func (s *GormStore) UpdateSinceDays(id uint, sinceDays int) error {
	return s.db.Model(&models.AlertEvent{}).
		Where("id = ?", id).
		Update("since_days", sinceDays).Error
}

// SaveRecommendation inserts or updates a recommendation.
func (s *GormStore) SaveRecommendation(rec *models.TradeRecommendation) error {
	return s.db.Save(rec).Error
}

// RecommendationByID fetches one recommendation; nil when absent.
func (s *GormStore) RecommendationByID(id uint) (*models.TradeRecommendation, error) {
	var rec models.TradeRecommendation
	if err := s.db.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ActiveRecommendation looks up the ACTIVE record for a key; nil when absent.
func (s *GormStore) ActiveRecommendation(symbol string, dir models.Direction, d models.TradeDuration) (*models.TradeRecommendation, error) {
	var rec models.TradeRecommendation
	err := s.db.Where("symbol = ? AND direction = ? AND trade_duration = ? AND status = ?",
		symbol, dir, d, models.StatusActive).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ActiveRecommendations returns all ACTIVE records, optionally scoped to one
// symbol.
func (s *GormStore) ActiveRecommendations(symbol string) ([]models.TradeRecommendation, error) {
	query := s.db.Where("status = ?", models.StatusActive)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var recs []models.TradeRecommendation
	err := query.Find(&recs).Error
	return recs, err
}

// Transaction runs fn inside one database transaction, presenting the
// transactional handle through the same Store contract.
func (s *GormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
