package pricebook_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/okna-market/pricing-api/internal/common"
	"github.com/okna-market/pricing-api/internal/money"
	"github.com/okna-market/pricing-api/internal/pricebook"
)

func testBook(t *testing.T) pricebook.PriceBook {
	t.Helper()
	base, err := money.FromString("100.00", "RUB")
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	tilt, _ := money.FromString("15.00", "RUB")
	lam, _ := money.FromString("25.00", "RUB")
	return pricebook.PriceBook{
		ID:                uuid.New(),
		ProductTemplateID: "WINDOW-STD",
		Version:           3,
		BasePrice:         base,
		OptionPremiums:    map[string]money.Money{"TILT": tilt, "LAMINATE": lam},
		Status:            pricebook.StatusActive,
	}
}

func TestResolveOptionsSortedAndDeduplicated(t *testing.T) {
	book := testBook(t)
	premiums, err := book.ResolveOptions([]string{"TILT", "LAMINATE", "TILT"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(premiums) != 2 {
		t.Fatalf("expected 2 premiums, got %d", len(premiums))
	}
	if premiums[0].OptionID != "LAMINATE" || premiums[1].OptionID != "TILT" {
		t.Fatalf("premiums not sorted: %+v", premiums)
	}
}

func TestResolveOptionsUnknownIDFailsFast(t *testing.T) {
	book := testBook(t)
	_, err := book.ResolveOptions([]string{"TILT", "TRIPLE-GLAZE"})
	if common.ErrorCode(err) != common.CodeUnknownOptionID {
		t.Fatalf("expected UNKNOWN_OPTION_ID, got %v", err)
	}
}

type stubRepo struct {
	active map[string]pricebook.PriceBook
}

func (s stubRepo) FindActiveByProductTemplateID(_ context.Context, id string) (pricebook.PriceBook, bool, error) {
	book, ok := s.active[id]
	return book, ok, nil
}

func (s stubRepo) FindByID(_ context.Context, _ uuid.UUID) (pricebook.PriceBook, bool, error) {
	return pricebook.PriceBook{}, false, nil
}

func (s stubRepo) SaveDraft(_ context.Context, book pricebook.PriceBook) error {
	return nil
}

func (s stubRepo) Publish(_ context.Context, _ uuid.UUID) (pricebook.PriceBook, error) {
	return pricebook.PriceBook{}, nil
}

func TestFindActiveMissingIsHardStop(t *testing.T) {
	svc := &pricebook.Service{Repo: stubRepo{active: map[string]pricebook.PriceBook{}}}
	_, err := svc.FindActive(context.Background(), "DOOR-UNKNOWN")
	if common.ErrorCode(err) != common.CodePriceBookNotFound {
		t.Fatalf("expected PRICE_BOOK_NOT_FOUND, got %v", err)
	}
}

func TestFindActiveReturnsBook(t *testing.T) {
	book := testBook(t)
	svc := &pricebook.Service{Repo: stubRepo{active: map[string]pricebook.PriceBook{"WINDOW-STD": book}}}
	got, err := svc.FindActive(context.Background(), " WINDOW-STD ")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got.Version != 3 || got.ProductTemplateID != "WINDOW-STD" {
		t.Fatalf("unexpected book %+v", got)
	}
}

func TestCreateDraftRejectsBadAmounts(t *testing.T) {
	svc := &pricebook.Service{Repo: stubRepo{}}
	_, err := svc.CreateDraft(context.Background(), pricebook.DraftInput{
		ProductTemplateID: "WINDOW-STD",
		BasePrice:         "not-a-number",
		Currency:          "RUB",
	})
	if err == nil {
		t.Fatal("expected error for unparsable base price")
	}
	_, err = svc.CreateDraft(context.Background(), pricebook.DraftInput{
		ProductTemplateID: "WINDOW-STD",
		BasePrice:         "100.00",
		Currency:          "RUB",
		OptionPremiums:    map[string]string{"TILT": "-1"},
	})
	if err == nil {
		t.Fatal("expected error for negative premium")
	}
}
