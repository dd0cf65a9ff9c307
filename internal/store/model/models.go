package model

import (
	"encoding/json"
	"fmt"
	"time"

	"quorum/internal/council"
	"quorum/internal/plan"
	"quorum/internal/signal"

	"gorm.io/datatypes"
)

// PlanModel is the persisted shape of a position plan. Structured parts
// (scenarios, executed steps, journal) travel as JSON columns; scalar fields
// that queries filter on get their own columns.
type PlanModel struct {
	ID         string `gorm:"column:id;primaryKey"`
	PositionID string `gorm:"column:position_id;uniqueIndex"`
	Symbol     string `gorm:"column:symbol;index"`
	Status     string `gorm:"column:status;index"`

	EntryPrice      float64 `gorm:"column:entry_price"`
	EntryQuantity   float64 `gorm:"column:entry_quantity"`
	EntryDateUnix   int64   `gorm:"column:entry_date"`
	EntryTechnical  float64 `gorm:"column:entry_technical"`
	EntryMomentum   float64 `gorm:"column:entry_momentum"`
	EntryAction     string  `gorm:"column:entry_action"`
	EntryConfidence float64 `gorm:"column:entry_confidence"`
	EntryStance     string  `gorm:"column:entry_stance"`

	ScenariosJSON datatypes.JSON `gorm:"column:scenarios_json;type:TEXT"`
	ExecutedJSON  datatypes.JSON `gorm:"column:executed_json;type:TEXT"`
	JournalJSON   datatypes.JSON `gorm:"column:journal_json;type:TEXT"`

	Thesis        string  `gorm:"column:thesis"`
	Invalidation  string  `gorm:"column:invalidation"`
	HighWaterMark float64 `gorm:"column:high_water_mark"`
	TuningVersion int64   `gorm:"column:tuning_version"`

	CreatedAtUnix int64 `gorm:"column:created_at"`
	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (PlanModel) TableName() string { return "position_plans" }

// FromPlan converts the domain plan into its row form.
func FromPlan(p *plan.Plan) (PlanModel, error) {
	scenarios, err := json.Marshal(p.Scenarios)
	if err != nil {
		return PlanModel{}, fmt.Errorf("encode scenarios: %w", err)
	}
	executed, err := json.Marshal(p.ExecutedSteps)
	if err != nil {
		return PlanModel{}, fmt.Errorf("encode executed steps: %w", err)
	}
	journal, err := json.Marshal(p.Journal)
	if err != nil {
		return PlanModel{}, fmt.Errorf("encode journal: %w", err)
	}
	return PlanModel{
		ID:              p.ID,
		PositionID:      p.PositionID,
		Symbol:          p.Symbol,
		Status:          string(p.Status),
		EntryPrice:      p.Entry.Price,
		EntryQuantity:   p.Entry.Quantity,
		EntryDateUnix:   p.Entry.Date.Unix(),
		EntryTechnical:  p.Entry.Technical,
		EntryMomentum:   p.Entry.Momentum,
		EntryAction:     p.Entry.Action.String(),
		EntryConfidence: p.Entry.Confidence,
		EntryStance:     string(p.Entry.Stance),
		ScenariosJSON:   datatypes.JSON(scenarios),
		ExecutedJSON:    datatypes.JSON(executed),
		JournalJSON:     datatypes.JSON(journal),
		Thesis:          p.Thesis,
		Invalidation:    p.Invalidation,
		HighWaterMark:   p.HighWaterMark,
		TuningVersion:   p.TuningVersion,
		CreatedAtUnix:   p.CreatedAt.Unix(),
		UpdatedAtUnix:   p.UpdatedAt.Unix(),
	}, nil
}

// ToPlan rebuilds the domain plan from its row form.
func (m PlanModel) ToPlan() (*plan.Plan, error) {
	p := &plan.Plan{
		ID:         m.ID,
		PositionID: m.PositionID,
		Symbol:     m.Symbol,
		Status:     plan.Status(m.Status),
		Entry: plan.EntrySnapshot{
			Price:      m.EntryPrice,
			Quantity:   m.EntryQuantity,
			Date:       time.Unix(m.EntryDateUnix, 0).UTC(),
			Technical:  m.EntryTechnical,
			Momentum:   m.EntryMomentum,
			Action:     council.ParseAction(m.EntryAction),
			Confidence: m.EntryConfidence,
			Stance:     signal.MacroStance(m.EntryStance),
		},
		Thesis:        m.Thesis,
		Invalidation:  m.Invalidation,
		HighWaterMark: m.HighWaterMark,
		TuningVersion: m.TuningVersion,
		CreatedAt:     time.Unix(m.CreatedAtUnix, 0).UTC(),
		UpdatedAt:     time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
	if len(m.ScenariosJSON) > 0 {
		if err := json.Unmarshal(m.ScenariosJSON, &p.Scenarios); err != nil {
			return nil, fmt.Errorf("decode scenarios: %w", err)
		}
	}
	if len(m.ExecutedJSON) > 0 {
		if err := json.Unmarshal(m.ExecutedJSON, &p.ExecutedSteps); err != nil {
			return nil, fmt.Errorf("decode executed steps: %w", err)
		}
	}
	if p.ExecutedSteps == nil {
		p.ExecutedSteps = make(map[string]time.Time)
	}
	if len(m.JournalJSON) > 0 {
		if err := json.Unmarshal(m.JournalJSON, &p.Journal); err != nil {
			return nil, fmt.Errorf("decode journal: %w", err)
		}
	}
	return p, nil
}
