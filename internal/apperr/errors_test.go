package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedErrorMatchesKind(t *testing.T) {
	errInvoiceNotFound := New(ErrNotFound, "invoice_not_found")
	wrapped := fmt.Errorf("load invoice: %w", errInvoiceNotFound)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound")
	}
	if !errors.Is(wrapped, errInvoiceNotFound) {
		t.Fatalf("expected wrapped error to match its sentinel")
	}
	if got := Code(wrapped); got != "invoice_not_found" {
		t.Fatalf("expected code invoice_not_found, got %q", got)
	}
}

func TestExternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("card_declined")
	err := External("stripe", cause)

	if !errors.Is(err, ErrExternal) {
		t.Fatalf("expected ErrExternal")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if External("stripe", err) != err {
		t.Fatalf("expected External to be idempotent")
	}
	if Kind(errors.New("boom")) != nil {
		t.Fatalf("expected unclassified error to have no kind")
	}
}
