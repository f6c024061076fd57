package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// OrderSummary is the read model served for a single order.
type OrderSummary struct {
	Order        PurchaseOrder  `json:"order"`
	Lines        []LineProgress `json:"lines"`
	Currency     string         `json:"currency"`
	DisplayTotal string         `json:"display_total"`
	Discrepancy  bool           `json:"discrepancy"`
	Negotiating  bool           `json:"negotiating"`
}

// LineProgress reports receiving progress of one line.
type LineProgress struct {
	ProductID   int64  `json:"product_id"`
	Ordered     string `json:"ordered"`
	Accounted   string `json:"accounted"`
	Outstanding string `json:"outstanding"`
}

// SummaryCache caches order summaries in Redis keyed by order version, so a
// committed change makes older entries unreachable.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewSummaryCache instantiates the cache helper.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SummaryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

// Fetch returns the cached summary or builds it with loader. Concurrent
// misses for the same order share one load.
func (c *SummaryCache) Fetch(ctx context.Context, orderID int64, loader func(context.Context) (OrderSummary, error)) (OrderSummary, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	version, err := c.client.Get(ctx, shared.OrderVersionKey(orderID)).Int64()
	if err == nil {
		payload, err := c.client.Get(ctx, shared.OrderSummaryKey(orderID, version)).Bytes()
		if err == nil {
			var summary OrderSummary
			if err := json.Unmarshal(payload, &summary); err == nil {
				return summary, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("order summary cache read", slog.Any("error", err))
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("order version cache read", slog.Any("error", err))
	}

	value, err, _ := c.group.Do(strconv.FormatInt(orderID, 10), func() (interface{}, error) {
		summary, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, summary)
		return summary, nil
	})
	if err != nil {
		return OrderSummary{}, err
	}
	return value.(OrderSummary), nil
}

func (c *SummaryCache) store(ctx context.Context, summary OrderSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	id, version := summary.Order.ID, summary.Order.Version
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, shared.OrderSummaryKey(id, version), raw, c.ttl)
		pipe.SetNX(ctx, shared.OrderVersionKey(id), version, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("order summary cache write", slog.Any("error", err))
	}
}

// Invalidate points the order at version so summaries of earlier versions
// are no longer served.
func (c *SummaryCache) Invalidate(ctx context.Context, orderID, version int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, shared.OrderVersionKey(orderID), version, c.ttl).Err(); err != nil {
		c.logger.Warn("order summary invalidate", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

// Summary returns the order read model, served from cache when possible.
func (s *Service) Summary(ctx context.Context, id int64) (OrderSummary, error) {
	return s.cache.Fetch(ctx, id, func(ctx context.Context) (OrderSummary, error) {
		po, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return OrderSummary{}, err
		}
		return buildSummary(po, s.currency), nil
	})
}

func buildSummary(po PurchaseOrder, currency string) OrderSummary {
	summary := OrderSummary{
		Order:       po,
		Currency:    currency,
		Discrepancy: hasDiscrepancy(po.Terms.Details) && po.Status.confirmed(),
		Negotiating: po.Original != nil,
	}
	for _, d := range po.Terms.Details {
		summary.Lines = append(summary.Lines, LineProgress{
			ProductID:   d.ProductID,
			Ordered:     d.OrderedQuantity.String(),
			Accounted:   d.Accounted().String(),
			Outstanding: d.Outstanding().String(),
		})
	}
	summary.DisplayTotal = currency + " " + formatAmount(po.Terms.TotalAmount)
	return summary
}

// formatAmount rounds to cents on the decimal itself and only hands the
// integer part to the printer for digit grouping.
func formatAmount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fixed
	}
	p := message.NewPrinter(language.English)
	return sign + p.Sprint(number.Decimal(n)) + "." + cents
}
