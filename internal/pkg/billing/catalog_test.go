package billing

import "testing"

func TestCatalogMetadataWinsOverName(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	item := ProviderLineItem{
		Metadata:    map[string]string{MetadataAddonKey: "extra_page"},
		ProductName: "LinkFox Premium",
	}
	kind, ok := catalog.KindOfItem(item)
	if !ok || kind != AddonExtraPage {
		t.Fatalf("metadata must win: got %q ok=%v", kind, ok)
	}
}

func TestCatalogLegacyNameFallback(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	kind, ok := catalog.KindOfItem(ProviderLineItem{ProductName: "Extra Redirect"})
	if !ok || kind != AddonExtraRedirect {
		t.Fatalf("legacy name fallback failed: got %q ok=%v", kind, ok)
	}
}

func TestCatalogUnknownItem(t *testing.T) {
	catalog := NewCatalog(testConfig().Prices)
	if _, ok := catalog.KindOfItem(ProviderLineItem{ProductName: "Something Else"}); ok {
		t.Fatal("unknown item must not classify")
	}
	item := ProviderLineItem{Metadata: map[string]string{MetadataAddonKey: "bogus"}}
	if _, ok := catalog.KindOfItem(item); ok {
		t.Fatal("bogus metadata must not classify")
	}
}

func TestCatalogSkipsEmptyPrices(t *testing.T) {
	catalog := NewCatalog(map[AddonKind]string{AddonPremium: "price_premium", AddonExtraPage: ""})
	if _, ok := catalog.PriceID(AddonExtraPage); ok {
		t.Fatal("empty price id must not be configured")
	}
	if priceID, ok := catalog.PriceID(AddonPremium); !ok || priceID != "price_premium" {
		t.Fatalf("premium price missing: %q ok=%v", priceID, ok)
	}
}
