package cxmarket

import (
	"github.com/cryptoxpress/cxmarket/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	MetricNameSpace = "cxmarket"

	weiPerUnit = 18
)

var (
	salesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "sales_total",
			Help:      "settled sales",
		},
		[]string{"payment_token"},
	)
	saleVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "sale_volume",
			Help:      "settled sale volume in whole token units",
		},
		[]string{"payment_token"},
	)
	commissionVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricNameSpace,
			Name:      "commission_volume",
			Help:      "collected commission in whole token units",
		},
		[]string{"payment_token"},
	)
	liveListings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "live_listings",
			Help:      "currently listed offers",
		},
	)
	settledSales = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "settled_sales",
			Help:      "total sale rows in the store",
		},
	)
)

func init() {
	prometheus.MustRegister(
		salesTotal,
		saleVolume,
		commissionVolume,
		liveListings,
		settledSales,
	)
}

func observeSale(sale *schema.Sale) {
	token := sale.PaymentToken.Hex()
	salesTotal.WithLabelValues(token).Inc()
	total, _ := decimal.NewFromBigInt(sale.Total, -weiPerUnit).Float64()
	saleVolume.WithLabelValues(token).Add(total)
	commission, _ := decimal.NewFromBigInt(sale.Commission, -weiPerUnit).Float64()
	commissionVolume.WithLabelValues(token).Add(commission)
}

func metricLiveListings(n int) {
	liveListings.Set(float64(n))
}

func metricSettledSales(n int64) {
	settledSales.Set(float64(n))
}
