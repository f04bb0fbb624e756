package cxmarket

func (m *Market) runJobs() {
	m.scheduler.Every(30).Seconds().SingletonMode().Do(m.updateListingStats)
	m.scheduler.Every(1).Minute().SingletonMode().Do(m.updateSaleStats)

	m.scheduler.StartAsync()
}

func (m *Market) updateListingStats() {
	metricLiveListings(m.engine.LiveListingCount())
}

func (m *Market) updateSaleStats() {
	total, err := m.wdb.CountSales()
	if err != nil {
		log.Error("count sales failed", "err", err)
		return
	}
	metricSettledSales(total)
}
