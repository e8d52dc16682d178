package server

import (
	"errors"
	"strconv"

	"akinmueble/internal/models"
	"akinmueble/internal/search"
	"akinmueble/internal/service"

	"github.com/gofiber/fiber/v2"
)

var sortOrders = map[string]bool{
	"salePrice:asc":    true,
	"salePrice:desc":   true,
	"rentalPrice:asc":  true,
	"rentalPrice:desc": true,
}

// parseSearchQuery reads the filters of GET /property/search.
func parseSearchQuery(c *fiber.Ctx) (search.Query, error) {
	p := parsePagination(c, defaultPaginationLimit)
	q := search.Query{
		Text:   c.Query("q"),
		Limit:  int64(p.Limit),
		Offset: int64(p.Offset),
	}

	for name, dest := range map[string]**uint{"cityId": &q.CityID, "propertyTypeId": &q.PropertyTypeID} {
		if raw := c.Query(name); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return q, models.NewValidationError(name + " must be a positive integer")
			}
			v := uint(n)
			*dest = &v
		}
	}
	for name, dest := range map[string]**bool{"sell": &q.Sell, "rent": &q.Rent} {
		if raw := c.Query(name); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return q, models.NewValidationError(name + " must be true or false")
			}
			*dest = &b
		}
	}
	for name, dest := range map[string]**float64{"maxSalePrice": &q.MaxSalePrice, "maxRentalPrice": &q.MaxRentalPrice} {
		if raw := c.Query(name); raw != "" {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || f < 0 {
				return q, models.NewValidationError(name + " must be a non-negative number")
			}
			*dest = &f
		}
	}
	if sort := c.Query("sort"); sort != "" {
		if !sortOrders[sort] {
			return q, models.NewValidationError("sort must be salePrice or rentalPrice with :asc or :desc")
		}
		q.Sort = sort
	}
	return q, nil
}

// SearchProperties handles GET /property/search.
func (s *Server) SearchProperties(c *fiber.Ctx) error {
	q, err := parseSearchQuery(c)
	if err != nil {
		return respondError(c, err)
	}
	records, total, err := s.properties.Search(c.UserContext(), q)
	if errors.Is(err, service.ErrSearchDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Property search is not available",
			Code:  "SEARCH_DISABLED",
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"records": records, "total": total})
}
