package adminapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dtadmin/internal/listquery"
	"dtadmin/internal/validate"
)

const (
	pathProducts         = "/admin/products"
	pathSpotlightHistory = "/admin/spotlight/history"

	// MaxSpotlightHours bounds duration_hours.
	MaxSpotlightHours = 24 * 90
)

func productPath(id int64) string   { return fmt.Sprintf("%s/%d", pathProducts, id) }
func spotlightPath(id int64) string { return productPath(id) + "/spotlight" }

// ListProducts fetches one page of listings. Filters: status, condition, category.
func (c *Client) ListProducts(ctx context.Context, q listquery.Query) (listquery.Result[Product], error) {
	return listPage[Product](ctx, c, pathProducts, resProducts, q)
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, u ProductUpdate) error {
	if err := checkID(id); err != nil {
		return err
	}
	if u.Title != nil && *u.Title == "" {
		return validate.FieldErrors{"title": "is required"}
	}
	if u.Price != nil && *u.Price < 0 {
		return validate.FieldErrors{"price": "must be at least 0"}
	}
	return c.Do(ctx, http.MethodPut, productPath(id), RequestOptions{Body: u}, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodDelete, productPath(id), RequestOptions{}, nil)
}

// Validate checks that exactly one of duration and end time is set and
// that the resulting window lies in the future.
func (r SpotlightRequest) Validate(now time.Time) error {
	switch {
	case r.DurationHours == 0 && r.CustomEndTime == nil:
		return validate.FieldErrors{"duration_hours": "duration or end time is required"}
	case r.DurationHours != 0 && r.CustomEndTime != nil:
		return validate.FieldErrors{"duration_hours": "set either duration or end time, not both"}
	case r.CustomEndTime != nil && !r.CustomEndTime.After(now):
		return validate.FieldErrors{"custom_end_time": "must be in the future"}
	case r.DurationHours < 0 || r.DurationHours > MaxSpotlightHours:
		return validate.FieldErrors{"duration_hours": fmt.Sprintf("must be between 1 and %d", MaxSpotlightHours)}
	}
	return nil
}

// ApplySpotlight features a product. Scheduling and expiry are the
// server's business.
func (c *Client) ApplySpotlight(ctx context.Context, id int64, r SpotlightRequest) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := r.Validate(time.Now()); err != nil {
		return err
	}
	if r.CustomEndTime != nil {
		t := r.CustomEndTime.UTC()
		r.CustomEndTime = &t
	}
	return c.Do(ctx, http.MethodPost, spotlightPath(id), RequestOptions{Body: r}, nil)
}

// GetSpotlight returns the product's spotlight. A 404 means none.
func (c *Client) GetSpotlight(ctx context.Context, id int64) (SpotlightStatus, error) {
	var st SpotlightStatus
	err := c.Do(ctx, http.MethodGet, spotlightPath(id), RequestOptions{}, &st)
	if StatusOf(err) == http.StatusNotFound {
		return SpotlightStatus{ProductID: id}, nil
	}
	if err != nil {
		return SpotlightStatus{}, err
	}
	if st.ProductID == 0 {
		st.ProductID = id
	}
	if st.Spotlight != nil && !st.Spotlighted && st.Spotlight.Active(time.Now()) {
		st.Spotlighted = true
	}
	return st, nil
}

func (c *Client) RemoveSpotlight(ctx context.Context, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodDelete, spotlightPath(id), RequestOptions{}, nil)
}

// SpotlightHistory fetches one page of the spotlight audit.
func (c *Client) SpotlightHistory(ctx context.Context, q listquery.Query) (listquery.Result[SpotlightHistoryEntry], error) {
	return listPage[SpotlightHistoryEntry](ctx, c, pathSpotlightHistory, resSpotlightHistory, q)
}

var errInvalidID = errors.New("id must be positive")

func checkID(id int64) error {
	if id <= 0 {
		return errInvalidID
	}
	return nil
}
