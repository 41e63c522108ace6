package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/repo"
)

const (
	channelEmail = "email"
	channelCall  = "call"
)

// handleEmailDue обрабатывает сообщение из followups.emails.due.
func (d *Dispatcher) handleEmailDue(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.FollowUpPayload](&msg.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrDiscard, err)
	}

	logger := d.logger.With("email_id", payload.ID, "case_id", payload.CaseID)

	if d.early(payload) {
		logger.Info("email arrived early, re-delaying", "scheduled_for", payload.ScheduledFor)
		return d.publisher.PublishEmailScheduled(ctx, payload)
	}

	email, err := d.emails.GetByID(ctx, payload.ID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("scheduled email not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get email: %w", err)
	}

	err = d.deliverEmail(ctx, email)
	if errors.Is(err, ErrNotScheduled) {
		logger.Debug("email already processed", "status", email.Status)
		return nil
	}
	return err
}

// handleCallDue обрабатывает сообщение из followups.calls.due.
func (d *Dispatcher) handleCallDue(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.FollowUpPayload](&msg.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", mq.ErrDiscard, err)
	}

	logger := d.logger.With("call_id", payload.ID, "case_id", payload.CaseID)

	if d.early(payload) {
		logger.Info("call arrived early, re-delaying", "scheduled_for", payload.ScheduledFor)
		return d.publisher.PublishCallScheduled(ctx, payload)
	}

	call, err := d.calls.GetByID(ctx, payload.ID)
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("scheduled call not found, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get call: %w", err)
	}

	err = d.placeCall(ctx, call)
	if errors.Is(err, ErrNotScheduled) {
		logger.Debug("call already processed", "status", call.Status)
		return nil
	}
	return err
}

// claimError переводит отказ захвата в ErrNotScheduled.
func claimError(err error) error {
	if errors.Is(err, repo.ErrInvalidState) {
		return ErrNotScheduled
	}
	return fmt.Errorf("claim: %w", err)
}

// early — сообщение пришло раньше срока (например, TTL урезан политикой брокера).
func (d *Dispatcher) early(p mq.FollowUpPayload) bool {
	return p.ScheduledFor.After(d.now().Add(d.earlyTolerance))
}

// deliverEmail отправляет письмо и сохраняет итоговый статус.
// Ошибка провайдера не возвращается: она фиксируется в записи как FAILED.
func (d *Dispatcher) deliverEmail(ctx context.Context, email *domain.ScheduledEmail) error {
	if err := d.emails.Claim(ctx, email.ID); err != nil {
		return claimError(err)
	}
	email.Status = domain.DeliveryStatusSending

	_, attempts, err := withRetry(ctx, d.retry, func(ctx context.Context) (string, error) {
		return d.sender.Send(ctx, email)
	})
	if ctx.Err() != nil {
		// Остановка: возвращаем запись в SCHEDULED, сообщение вернётся в очередь
		if err := d.emails.Release(context.WithoutCancel(ctx), email.ID); err != nil {
			d.logger.Error("failed to release email", "email_id", email.ID, "error", err)
		}
		return ctx.Err()
	}
	if err != nil {
		email.MarkFailed(err.Error())
		d.logger.Warn("email delivery failed",
			"email_id", email.ID,
			"attempts", attempts,
			"error", err,
		)
	} else {
		email.MarkSent()
		d.logger.Info("email sent",
			"email_id", email.ID,
			"case_id", email.CaseID,
			"attempts", attempts,
		)
	}

	if err := d.emails.UpdateDelivery(ctx, email); err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	d.metrics.ObserveDelivery(channelEmail, string(email.Status))
	return nil
}

// placeCall ставит звонок и сохраняет итоговый статус.
func (d *Dispatcher) placeCall(ctx context.Context, call *domain.ScheduledCall) error {
	if err := d.calls.Claim(ctx, call.ID); err != nil {
		return claimError(err)
	}
	call.Status = domain.DeliveryStatusSending

	ref, attempts, err := withRetry(ctx, d.retry, func(ctx context.Context) (string, error) {
		return d.placer.Place(ctx, call)
	})
	if ctx.Err() != nil {
		if err := d.calls.Release(context.WithoutCancel(ctx), call.ID); err != nil {
			d.logger.Error("failed to release call", "call_id", call.ID, "error", err)
		}
		return ctx.Err()
	}
	if err != nil {
		call.MarkFailed(err.Error())
		d.logger.Warn("call placement failed",
			"call_id", call.ID,
			"attempts", attempts,
			"error", err,
		)
	} else {
		call.MarkPlaced(ref)
		d.logger.Info("call placed",
			"call_id", call.ID,
			"case_id", call.CaseID,
			"provider_ref", ref,
			"attempts", attempts,
		)
	}

	if err := d.calls.UpdateDelivery(ctx, call); err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	d.metrics.ObserveDelivery(channelCall, string(call.Status))
	return nil
}
