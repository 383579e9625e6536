package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderadminOffer is a product offer in the fulfillment catalog
type OrderadminOffer struct {
	ID   json.RawMessage
	Key  string
	Name string
}

// OfferCatalog maps marketplace product codes to fulfillment offers.
// It is built once and never modified.
type OfferCatalog struct {
	offers map[string]OrderadminOffer
}

// NewOfferCatalog builds a catalog keyed by Key; later offers win on duplicate keys
func NewOfferCatalog(offers []OrderadminOffer) *OfferCatalog {
	c := &OfferCatalog{offers: make(map[string]OrderadminOffer, len(offers))}
	for _, o := range offers {
		if o.Key == "" {
			continue
		}
		c.offers[o.Key] = o
	}
	return c
}

// Lookup returns the offer registered for a product code
func (c *OfferCatalog) Lookup(code string) (OrderadminOffer, bool) {
	o, ok := c.offers[code]
	return o, ok
}

// Len returns the number of offers in the catalog
func (c *OfferCatalog) Len() int {
	return len(c.offers)
}

// loadOfferCatalog fetches every offer of the configured shop.
// The first page reports page_count; remaining pages are fetched concurrently,
// each worker writing to its own slot so page order is preserved.
func (a *OrderadminAdapter) loadOfferCatalog(ctx context.Context) (*OfferCatalog, error) {
	first, err := a.fetchOfferPage(ctx, 1)
	if err != nil {
		return nil, err
	}

	pages := make([][]map[string]json.RawMessage, first.PageCount)
	if len(pages) == 0 {
		pages = make([][]map[string]json.RawMessage, 1)
	}
	pages[0] = first.Embedded["product_offer"]

	if first.PageCount > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.config.MaxWorkers)
		for page := 2; page <= first.PageCount; page++ {
			g.Go(func() error {
				resp, err := a.fetchOfferPage(gctx, page)
				if err != nil {
					return err
				}
				pages[page-1] = resp.Embedded["product_offer"]
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	offers := make([]OrderadminOffer, 0, len(pages)*a.config.PageSize)
	for _, items := range pages {
		for _, item := range items {
			offers = append(offers, OrderadminOffer{
				ID:   item["id"],
				Key:  rawString(item[a.config.ProductField]),
				Name: rawString(item["name"]),
			})
		}
	}

	catalog := NewOfferCatalog(offers)
	a.logger.Info("Loaded offer catalog",
		zap.Int("pages", len(pages)),
		zap.Int("offers", len(offers)),
		zap.Int("mapped", catalog.Len()))
	return catalog, nil
}

// fetchOfferPage fetches one page of the shop's offers
func (a *OrderadminAdapter) fetchOfferPage(ctx context.Context, page int) (*orderadminCollection, error) {
	params := shopFilter(a.config.ShopID)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(a.config.PageSize))

	var resp orderadminCollection
	if err := a.doRequest(ctx, http.MethodGet, "products/offer", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("orderadmin: load offers page %d: %w", page, err)
	}
	return &resp, nil
}

// eqFilter builds the single-condition equality filter used by list endpoints
func eqFilter(field, value string) url.Values {
	params := url.Values{}
	params.Set("filter[0][type]", "eq")
	params.Set("filter[0][field]", field)
	params.Set("filter[0][value]", value)
	return params
}

func shopFilter(shopID string) url.Values {
	return eqFilter("shop", shopID)
}
