package payment

import (
	"strings"

	"github.com/Domenick1991/travelbooking/internal/domain"
)

// Checkout is the candidate list shown at booking time together with the
// active selection. An empty Selected means "enter a new card".
type Checkout struct {
	OwnerID    string                    `json:"userId"`
	Candidates []domain.PaymentCandidate `json:"candidates"`
	Selected   string                    `json:"selected,omitempty"`
	// Degraded lists the sources that could not be read.
	Degraded []domain.PaymentOrigin `json:"degraded,omitempty"`
}

func newCheckout(ownerID string, candidates []domain.PaymentCandidate) *Checkout {
	c := &Checkout{OwnerID: ownerID, Candidates: candidates}
	c.Selected = c.initialSelection()
	return c
}

// NewCard reports whether the new-card form is the active selection.
func (c *Checkout) NewCard() bool {
	return c.Selected == ""
}

// Mode is the payment mode implied by the active selection.
func (c *Checkout) Mode() domain.PaymentMode {
	if c.NewCard() {
		return domain.PaymentModeNew
	}
	return domain.PaymentModeSaved
}

func (c *Checkout) Find(ref string) (domain.PaymentCandidate, bool) {
	for _, cand := range c.Candidates {
		if cand.Ref == ref {
			return cand, true
		}
	}
	return domain.PaymentCandidate{}, false
}

func (c *Checkout) Select(ref string) error {
	if _, ok := c.Find(ref); !ok {
		return domain.NotFoundError{Entity: "payment option", ID: ref}
	}
	c.Selected = ref
	return nil
}

func (c *Checkout) SelectNew() {
	c.Selected = ""
}

// Remove drops ref from the list. When it was the active selection, the
// selection moves to the first default, then the first remaining
// candidate, then the new-card form.
func (c *Checkout) Remove(ref string) (domain.PaymentCandidate, bool) {
	for i, cand := range c.Candidates {
		if cand.Ref != ref {
			continue
		}
		c.Candidates = append(c.Candidates[:i:i], c.Candidates[i+1:]...)
		if c.Selected == ref {
			c.Selected = c.initialSelection()
		}
		return cand, true
	}
	return domain.PaymentCandidate{}, false
}

func (c *Checkout) initialSelection() string {
	for _, cand := range c.Candidates {
		if cand.IsDefault {
			return cand.Ref
		}
	}
	if len(c.Candidates) > 0 {
		return c.Candidates[0].Ref
	}
	return ""
}

// Ref builds the checkout reference of a candidate.
func Ref(origin domain.PaymentOrigin, id string) string {
	return string(origin) + ":" + id
}

// ParseRef splits a reference built by Ref.
func ParseRef(ref string) (domain.PaymentOrigin, string, bool) {
	origin, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return "", "", false
	}
	switch domain.PaymentOrigin(origin) {
	case domain.OriginAccount, domain.OriginVault:
		return domain.PaymentOrigin(origin), id, true
	}
	return "", "", false
}
