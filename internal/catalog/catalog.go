// Package catalog хранит статическую таблицу продуктов: путь продукта
// в платежной системе и цену для каждой пары (уровень, период).
package catalog

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/models"
)

// ErrUnknownProduct возвращается, если для пары (уровень, период) нет продукта.
var ErrUnknownProduct = errors.New("unknown product")

type key struct {
	tier     models.Tier
	duration models.Duration
}

// Product строка каталога.
type Product struct {
	Tier     models.Tier     `json:"tier"`
	Duration models.Duration `json:"duration"`
	Path     string          `json:"path"`
	Price    float64         `json:"price"`
}

// Catalog неизменяемая таблица продуктов.
type Catalog struct {
	products map[key]Product
}

// New строит каталог из строк конфига. Дубликаты и пустые пути считаются ошибкой.
func New(rows []config.CatalogRow) (*Catalog, error) {
	const op = "catalog.New"
	c := &Catalog{products: make(map[key]Product, len(rows))}
	for i, row := range rows {
		tier, err := models.ParseTier(row.Tier)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", op, i, err)
		}
		duration, err := models.ParseDuration(row.Duration)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", op, i, err)
		}
		if row.Path == "" {
			return nil, fmt.Errorf("%s: row %d: empty product path", op, i)
		}
		if row.Price < 0 {
			return nil, fmt.Errorf("%s: row %d: negative price", op, i)
		}
		k := key{tier: tier, duration: duration}
		if _, dup := c.products[k]; dup {
			return nil, fmt.Errorf("%s: duplicate product %s/%s", op, tier, duration)
		}
		c.products[k] = Product{Tier: tier, Duration: duration, Path: row.Path, Price: row.Price}
	}
	return c, nil
}

// Resolve возвращает продукт для пары (уровень, период).
func (c *Catalog) Resolve(tier models.Tier, duration models.Duration) (Product, error) {
	p, ok := c.products[key{tier: tier, duration: duration}]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s/%s", ErrUnknownProduct, tier, duration)
	}
	return p, nil
}

// List возвращает продукты в порядке уровней и периодов.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.products))
	for _, t := range models.PaidTiers {
		for _, d := range models.Durations {
			if p, ok := c.products[key{tier: t, duration: d}]; ok {
				out = append(out, p)
			}
		}
	}
	return out
}
