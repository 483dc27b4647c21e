package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/store"
	"agendahub/internal/member"
	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

// BatchItem is one bulk-import entry, identified by member email.
type BatchItem struct {
	Email string `json:"email"`
	Job   string `json:"job,omitempty"`
}

// BatchFailure records one item that could not be imported. Partial failure
// is the expected path for bulk import, not an aborting condition.
type BatchFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// BatchReport summarizes a bulk import for operator review.
type BatchReport struct {
	Imported int            `json:"imported"`
	Failed   []BatchFailure `json:"failed,omitempty"`
}

const batchResolveParallelism = 8

// BatchImport resolves member emails and registers each one. The job-slot
// capacity check is bypassed: bulk import is a trusted operator action.
func (s *Service) BatchImport(ctx context.Context, agendaID uuid.UUID, role agenda.Role, items []BatchItem) (*BatchReport, error) {
	a, err := s.GetAgenda(ctx, agendaID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no items to import")
	}

	// Resolution fans out; inserts stay sequential so the report order is
	// deterministic and conflicts are attributed to the right item.
	resolved := make([]*member.Member, len(items))
	resolveErrs := make([]error, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchResolveParallelism)
	for i, item := range items {
		g.Go(func() error {
			resolved[i], resolveErrs[i] = s.members.FindByEmail(gctx, item.Email)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "batch resolution failed")
	}

	report := &BatchReport{}
	for i, item := range items {
		if resolveErrs[i] != nil {
			reason := "lookup failed"
			if errors.Is(resolveErrs[i], sentinel.ErrNotFound) {
				reason = "unknown member"
			}
			report.Failed = append(report.Failed, BatchFailure{Email: item.Email, Reason: reason})
			continue
		}

		reg := &agenda.Registration{
			ID:       uuid.New(),
			AgendaID: agendaID,
			Role:     role,
			Identity: agenda.MemberIdentity(resolved[i].ID),
			Job:      item.Job,
			Payment: agenda.Payment{
				Method: agenda.MethodCash,
				Status: agenda.StatusPending,
				Amount: a.FeeAmount,
			},
			CreatedAt: s.now(),
		}
		if err := s.store.InsertRegistration(ctx, reg); err != nil {
			reason := "insert failed"
			if errors.Is(err, sentinel.ErrConflict) {
				reason = "already registered"
			}
			report.Failed = append(report.Failed, BatchFailure{Email: item.Email, Reason: reason})
			continue
		}
		report.Imported++
	}

	if s.metrics != nil {
		s.metrics.BatchImported.Add(float64(report.Imported))
		s.metrics.BatchImportFailed.Add(float64(len(report.Failed)))
	}
	s.logger.InfoContext(ctx, "batch import finished",
		"agenda_id", agendaID,
		"role", role,
		"imported", report.Imported,
		"failed", len(report.Failed),
	)
	return report, nil
}

// BatchPatch is the operator bulk field toggle.
type BatchPatch struct {
	IDs           []uuid.UUID
	PaymentStatus *agenda.PaymentStatus
	Visiting      *bool
}

// BatchToggle applies a field patch across selected registrations. This
// operator path is not exercised under end-user concurrency.
func (s *Service) BatchToggle(ctx context.Context, agendaID uuid.UUID, patch BatchPatch) (int, error) {
	if _, err := s.GetAgenda(ctx, agendaID); err != nil {
		return 0, err
	}
	if len(patch.IDs) == 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "no registration ids given")
	}
	if patch.PaymentStatus == nil && patch.Visiting == nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "nothing to update")
	}
	if patch.PaymentStatus != nil {
		switch *patch.PaymentStatus {
		case agenda.StatusPending, agenda.StatusSuccess, agenda.StatusCanceled, agenda.StatusExpired, agenda.StatusFailed:
		default:
			return 0, dErrors.New(dErrors.CodeBadRequest, "invalid payment status")
		}
	}

	updated, err := s.store.PatchRegistrations(ctx, agendaID, patch.IDs, store.FieldPatch{
		PaymentStatus: patch.PaymentStatus,
		Visiting:      patch.Visiting,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "batch update failed")
	}
	return updated, nil
}
