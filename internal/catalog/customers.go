package catalog

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go-pharmacy-pos/internal/apperr"
	"go-pharmacy-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewCustomer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// CustomerPatch lists the contact fields UpdateCustomer may change. The
// visit/spend rollups are maintained by the order ledger only.
type CustomerPatch struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
}

func validEmail(email string) bool {
	if email == "" {
		return true
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

func (p CustomerPatch) columns() (map[string]any, error) {
	cols := map[string]any{}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, apperr.Validation("customer name cannot be blank")
		}
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Phone != nil {
		cols["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if !validEmail(email) {
			return nil, apperr.Validation("invalid email %q", email)
		}
		cols["email"] = email
	}
	if p.Address != nil {
		cols["address"] = strings.TrimSpace(*p.Address)
	}
	if len(cols) == 0 {
		return nil, apperr.Validation("patch changes nothing")
	}
	return cols, nil
}

func (s *Service) CreateCustomer(ctx context.Context, in NewCustomer) (*models.Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("customer name is required")
	}
	email := strings.TrimSpace(in.Email)
	if !validEmail(email) {
		return nil, apperr.Validation("invalid email %q", email)
	}
	c := models.Customer{
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      email,
		Address:    strings.TrimSpace(in.Address),
		TotalSpent: decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, apperr.Persistence("failed to create customer", err)
	}
	s.log.Info("customer created", "customer_id", c.ID)
	return &c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("customer %d not found", id)
		}
		return nil, apperr.Persistence("failed to load customer", err)
	}
	return &c, nil
}

// ListCustomers returns customers by name, optionally filtered by a name
// or phone fragment.
func (s *Service) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	q := s.db.WithContext(ctx).Model(&models.Customer{})
	if term := strings.TrimSpace(search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR phone LIKE ?", like, like)
	}
	var customers []models.Customer
	if err := q.Order("name asc, id asc").Find(&customers).Error; err != nil {
		return nil, apperr.Persistence("failed to fetch customers", err)
	}
	return customers, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id uint, patch CustomerPatch) (*models.Customer, error) {
	cols, err := patch.columns()
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, apperr.Persistence("failed to update customer", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("customer %d not found", id)
	}
	return s.GetCustomer(ctx, id)
}

// RecordVisit bumps the customer rollups for a completed order. It runs on
// the caller's transaction.
func RecordVisit(tx *gorm.DB, customerID uint, amount decimal.Decimal, at time.Time) error {
	res := tx.Model(&models.Customer{}).Where("id = ?", customerID).Updates(map[string]any{
		"last_visit_at": at,
		"total_spent":   gorm.Expr("total_spent + ?", amount),
	})
	if res.Error != nil {
		return apperr.Persistence("failed to update customer rollups", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("customer %d not found", customerID)
	}
	return nil
}
