package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor/backend/internal/docstore"
)

var groundingSteps = []string{
	"Pause and take 5 slow breaths.",
	"Name 3 things you can see around you.",
	"Place your feet on the ground and feel the floor beneath you.",
}

const noSafetyPlanMessage = "No safety plan found. Please create one when you feel able."

type safeContact struct {
	Name  string  `json:"name" binding:"required"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type reasonToLive struct {
	Text     *string `json:"text"`
	MediaURL *string `json:"media_url"`
}

type safetyPlan struct {
	Triggers         []string      `json:"triggers"`
	CopingStrategies []string      `json:"coping_strategies"`
	SafeContacts     []safeContact `json:"safe_contacts" binding:"dive"`
	ReasonToLive     *reasonToLive `json:"reason_to_live"`
}

type safetyPlanResponse struct {
	ID  string `json:"id"`
	UID string `json:"uid"`
	safetyPlan
}

func (p *safetyPlan) normalize() {
	if p.Triggers == nil {
		p.Triggers = []string{}
	}
	if p.CopingStrategies == nil {
		p.CopingStrategies = []string{}
	}
	if p.SafeContacts == nil {
		p.SafeContacts = []safeContact{}
	}
}

func (a *App) getSafetyPlan(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	plan, found, err := a.loadSafetyPlan(c.Request.Context(), user.ID)
	if err != nil {
		a.logger.Error("load safety plan", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load safety plan")
		return
	}
	if !found {
		plan = safetyPlan{}
		plan.normalize()
	}
	c.JSON(http.StatusOK, safetyPlanResponse{ID: user.ID, UID: user.ID, safetyPlan: plan})
}

// upsertSafetyPlan replaces the owner's plan as a whole.
func (a *App) upsertSafetyPlan(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload safetyPlan
	if !mustJSON(c, &payload) {
		return
	}
	payload.normalize()

	fields, err := toFields(payload)
	if err == nil {
		fields["uid"] = user.ID
		err = a.store.Set(c.Request.Context(), collectionSafetyPlans, user.ID, fields)
	}
	if err != nil {
		a.logger.Error("save safety plan", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to save safety plan")
		return
	}
	c.JSON(http.StatusOK, safetyPlanResponse{ID: user.ID, UID: user.ID, safetyPlan: payload})
}

func (a *App) startCrisis(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	activatedAt := a.now()
	if _, err := a.store.Add(c.Request.Context(), collectionCrisisLogs, map[string]any{
		"uid":          user.ID,
		"activated_at": docstore.Timestamp(activatedAt),
	}); err != nil {
		a.logger.Error("record crisis activation", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to start crisis mode")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "crisis_started",
		"activated_at": activatedAt.Format(time.RFC3339),
	})
}

func (a *App) getCrisisSupport(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	plan, found, err := a.loadSafetyPlan(c.Request.Context(), user.ID)
	if err != nil {
		a.logger.Error("load safety plan for crisis support", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load crisis support")
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{
			"status":          "no_safety_plan",
			"grounding_steps": groundingSteps,
			"message":         noSafetyPlanMessage,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "crisis_mode_active",
		"grounding_steps":   groundingSteps,
		"coping_strategies": plan.CopingStrategies,
		"safe_contacts":     plan.SafeContacts,
		"reason_to_live":    plan.ReasonToLive,
	})
}

func (a *App) loadSafetyPlan(ctx context.Context, uid string) (safetyPlan, bool, error) {
	doc, err := a.store.Get(ctx, collectionSafetyPlans, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return safetyPlan{}, false, nil
	}
	if err != nil {
		return safetyPlan{}, false, err
	}
	var plan safetyPlan
	if err := fromFields(doc.Fields, &plan); err != nil {
		return safetyPlan{}, false, err
	}
	plan.normalize()
	return plan, true, nil
}

func toFields(value any) (map[string]any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return fields, nil
}

func fromFields(fields map[string]any, out any) error {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
