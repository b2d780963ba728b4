package streaming

// progress decides when the send loop reports how far it is. It reports every
// max(1, total/10) chunks, so the last bucket may be irregular.
type progress struct {
	total     int
	every     int
	processed int
}

func newProgress(total int) *progress {
	return &progress{total: total, every: max(1, total/10)}
}

// advance counts one processed chunk and returns the completion percentage
// when a report is due.
func (p *progress) advance() (float64, bool) {
	p.processed++
	if p.processed%p.every != 0 {
		return 0, false
	}
	if p.total <= 0 {
		return 100, true
	}
	return min(100, float64(p.processed)/float64(p.total)*100), true
}
