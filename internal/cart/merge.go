package cart

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// merge pushes the guest lines into the server cart one at a time; the
// server adds quantities to lines it already has. Lines the server refuses
// are dropped. A network or auth failure stops the merge and the lines not
// yet sent stay in local storage for the next login.
func (s *Service) merge(ctx context.Context) error {
	guest, err := s.local.load(ctx)
	if err != nil {
		return err
	}
	if guest.Empty() {
		return nil
	}

	var (
		pending  []domain.CartLine
		mergeErr error
	)
	for i, l := range guest.Lines {
		err := s.api.AddCartItem(ctx, l.ProductID, l.Quantity)
		if err == nil {
			continue
		}
		if apperr.IsRejected(err) {
			s.log.WarnContext(ctx, "server refused guest cart line", "product_id", l.ProductID, "quantity", l.Quantity, "error", err)
			continue
		}
		pending = guest.Lines[i:]
		mergeErr = err
		break
	}

	if err := s.local.persist(ctx, domain.Cart{Lines: pending}); err != nil {
		s.log.WarnContext(ctx, "failed to update guest cart after merge", "error", err)
	}
	s.metrics.CartMutation(ctx, "merge", ModeRemote.String(), mergeErr)
	if mergeErr != nil {
		s.log.WarnContext(ctx, "guest cart merge incomplete", "pending", len(pending), "error", mergeErr)
		return &apperr.CartError{Op: "merge", Err: mergeErr}
	}
	s.log.InfoContext(ctx, "guest cart merged", "lines", len(guest.Lines))
	return nil
}
