package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/types"
)

// DashboardInput creates or replaces a dashboard.
type DashboardInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Widgets     []models.Widget `json:"widgets"`
}

// Bucket is one value of a distribution widget.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// WidgetData is the computed content of one widget.
type WidgetData struct {
	Widget       models.Widget `json:"widget"`
	Count        int64         `json:"count"`
	Value        *float64      `json:"value,omitempty"`
	Distribution []Bucket      `json:"distribution,omitempty"`
}

type DashboardService struct {
	db          *gorm.DB
	revalidator Revalidator
}

func NewDashboardService(db *gorm.DB, revalidator Revalidator) *DashboardService {
	return &DashboardService{db: db, revalidator: revalidator}
}

func (s *DashboardService) ListDashboards(ctx context.Context, ownerID string) ([]models.Dashboard, error) {
	var list []models.Dashboard
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name").Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	return list, nil
}

func (s *DashboardService) GetDashboard(ctx context.Context, ownerID, id string) (*models.Dashboard, error) {
	return findDashboard(s.db.WithContext(ctx), ownerID, id)
}

func (s *DashboardService) CreateDashboard(ctx context.Context, ownerID string, in DashboardInput) (*models.Dashboard, error) {
	db := s.db.WithContext(ctx)
	widgets, err := checkWidgets(db, ownerID, in.Widgets)
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		Widgets:     models.NewJSON(widgets),
	}
	if err := db.Create(dashboard).Error; err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagDashboards), Of(TagDashboard, dashboard.ID))
	return dashboard, nil
}

func (s *DashboardService) UpdateDashboard(ctx context.Context, ownerID, id string, in DashboardInput) (*models.Dashboard, error) {
	db := s.db.WithContext(ctx)
	dashboard, err := findDashboard(db, ownerID, id)
	if err != nil {
		return nil, err
	}
	widgets, err := checkWidgets(db, ownerID, in.Widgets)
	if err != nil {
		return nil, err
	}

	dashboard.Name = in.Name
	dashboard.Description = in.Description
	dashboard.Widgets = models.NewJSON(widgets)
	if err := db.Save(dashboard).Error; err != nil {
		return nil, fmt.Errorf("update dashboard: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagDashboards), Of(TagDashboard, id))
	return dashboard, nil
}

func (s *DashboardService) DeleteDashboard(ctx context.Context, ownerID, id string) error {
	db := s.db.WithContext(ctx)
	if _, err := findDashboard(db, ownerID, id); err != nil {
		return err
	}
	if err := db.Where("id = ?", id).Delete(&models.Dashboard{}).Error; err != nil {
		return fmt.Errorf("delete dashboard: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagDashboards), Of(TagDashboard, id))
	return nil
}

// DashboardData computes every widget of a dashboard concurrently.
func (s *DashboardService) DashboardData(ctx context.Context, ownerID, id string) ([]WidgetData, error) {
	dashboard, err := findDashboard(s.db.WithContext(ctx), ownerID, id)
	if err != nil {
		return nil, err
	}

	widgets := dashboard.Widgets.Data
	results := make([]WidgetData, len(widgets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, w := range widgets {
		g.Go(func() error {
			data, err := s.computeWidget(s.db.WithContext(gctx), w)
			if err != nil {
				return fmt.Errorf("widget %s: %w", w.ID, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *DashboardService) computeWidget(db *gorm.DB, w models.Widget) (WidgetData, error) {
	data := WidgetData{Widget: w}

	switch w.Kind {
	case models.WidgetCount:
		err := db.Model(&models.FormResponse{}).Where("form_id = ?", w.FormID).Count(&data.Count).Error
		return data, err

	case models.WidgetDistribution:
		var buckets []Bucket
		err := db.Model(&models.FormResponseValue{}).
			Select("string_value AS value, COUNT(*) AS count").
			Where("form_id = ? AND field_id = ?", w.FormID, w.FieldID).
			Group("string_value").
			Scan(&buckets).Error
		if err != nil {
			return data, err
		}
		sort.Slice(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Value < buckets[j].Value
		})
		for _, b := range buckets {
			data.Count += b.Count
		}
		data.Distribution = buckets
		return data, nil

	case models.WidgetAverage, models.WidgetSum:
		var agg struct {
			N     int64
			Total float64
		}
		err := db.Model(&models.FormResponseValue{}).
			Select("COUNT(numeric_value) AS n, COALESCE(SUM(numeric_value), 0) AS total").
			Where("form_id = ? AND field_id = ?", w.FormID, w.FieldID).
			Scan(&agg).Error
		if err != nil {
			return data, err
		}
		data.Count = agg.N
		value := agg.Total
		if w.Kind == models.WidgetAverage {
			if agg.N == 0 {
				return data, nil
			}
			value = agg.Total / float64(agg.N)
		}
		data.Value = &value
		return data, nil
	}

	return data, fmt.Errorf("unknown widget kind %q", w.Kind)
}

// checkWidgets rejects unknown kinds and widgets over forms ownerID cannot see.
func checkWidgets(db *gorm.DB, ownerID string, widgets []models.Widget) ([]models.Widget, error) {
	out := make([]models.Widget, len(widgets))
	for i, w := range widgets {
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if !w.Kind.Valid() {
			return nil, &types.ConfigurationError{FieldIDs: []string{w.ID}, Reason: fmt.Sprintf("unknown widget kind %q", w.Kind)}
		}
		if w.Kind.NeedsField() && w.FieldID == "" {
			return nil, &types.ConfigurationError{FieldIDs: []string{w.ID}, Reason: fmt.Sprintf("%s widget needs a field_id", w.Kind)}
		}
		if _, err := findOwnedForm(db, ownerID, w.FormID); err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func findDashboard(db *gorm.DB, ownerID, id string) (*models.Dashboard, error) {
	var dashboard models.Dashboard
	err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&dashboard).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Entity: "dashboard", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	return &dashboard, nil
}
