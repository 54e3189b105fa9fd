package pagination

import (
	"strconv"

	"balanceledger/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ParseFromRequest reads page and size from the query string. Missing or
// malformed values become zero and are normalised by the statement service.
func ParseFromRequest(c *fiber.Ctx) models.Page {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", "0"))
	return models.Page{Page: page, Size: size}
}

// Response wraps one page of data with pagination metadata.
func Response(data interface{}, page, size int, total int64) fiber.Map {
	totalPages := int64(0)
	if size > 0 {
		totalPages = total / int64(size)
		if total%int64(size) > 0 {
			totalPages++
		}
	}

	return fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"page":        page,
			"size":        size,
			"total":       total,
			"total_pages": totalPages,
		},
	}
}
