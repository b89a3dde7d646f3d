package service

// Recorder 业务指标记录接口，由 monitoring.Metrics 实现
type Recorder interface {
	RecordNewsletterEvent(event string)
	RecordDelivery(result string)
	RecordSearch(results int)
}

type nopRecorder struct{}

func (nopRecorder) RecordNewsletterEvent(string) {}
func (nopRecorder) RecordDelivery(string)        {}
func (nopRecorder) RecordSearch(int)             {}
