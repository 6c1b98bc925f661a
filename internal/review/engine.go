// Package review applies operator decisions to pending updates.
package review

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

// Engine resolves pending updates. Every resolution runs in one store
// transaction whose first write is the conditional status transition, so
// concurrent resolvers of the same update see exactly one winner.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine creates an Engine backed by st.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// Resolve accepts or rejects update id. It returns store.ErrNotFound for an
// unknown id and store.ErrConflict when the update was already resolved.
//
// Accepting records the item's live rate at resolution time as the audit
// old value and upserts the item. Rejecting records the rate snapshotted at
// detection and leaves items untouched.
func (e *Engine) Resolve(ctx context.Context, id string, d model.Decision, managerID string) (*model.Resolution, error) {
	to, err := model.UpdateStatusPending.Apply(d)
	if err != nil {
		return nil, eris.Wrap(err, "review: resolve")
	}

	var res *model.Resolution
	err = e.store.InTx(ctx, func(tx store.Tx) error {
		now := e.now().UTC()
		u, err := tx.TransitionPendingUpdate(ctx, id, model.UpdateStatusPending, to, now)
		if err != nil {
			return err
		}

		entry := model.AuditEntry{
			Action:    model.AuditActionFor(d),
			ItemName:  u.DetectedItem,
			NewValue:  u.ProposedRate,
			UpdateID:  u.ID,
			ManagerID: managerID,
			Timestamp: now,
		}

		if d == model.DecisionAccept {
			live, err := tx.GetItem(ctx, u.DetectedItem)
			if err != nil {
				return err
			}
			item := model.Item{Name: u.DetectedItem, Rate: u.ProposedRate, LastUpdated: now}
			if live != nil {
				entry.OldValue = model.Float(live.Rate)
				item.Description = live.Description
			}
			if err := tx.UpsertItem(ctx, item); err != nil {
				return err
			}
		} else {
			entry.OldValue = u.CurrentRate
		}

		if err := tx.AppendAudit(ctx, &entry); err != nil {
			return err
		}
		res = &model.Resolution{
			UpdateID:  u.ID,
			OldStatus: model.UpdateStatusPending,
			NewStatus: u.Status,
			Audit:     entry,
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "review: resolve %s", id)
	}

	zap.L().Info("review: update resolved",
		zap.String("update_id", id),
		zap.String("item", res.Audit.ItemName),
		zap.String("status", string(res.NewStatus)),
		zap.String("manager_id", managerID),
	)
	return res, nil
}
