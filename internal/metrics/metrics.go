// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordUploadAccepted(sizeBytes int64)
	RecordUploadRejected(reason string)
	RecordUploadLatency(duration time.Duration)
	RecordKnowledgeBaseCreated()
	RecordKnowledgeBaseDeleted()
	RecordDocumentDeleted()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploadAccepted prometheus.Counter
	uploadRejected *prometheus.CounterVec
	uploadBytes    prometheus.Histogram
	uploadLatency  prometheus.Histogram
	kbCreated      prometheus.Counter
	kbDeleted      prometheus.Counter
	docDeleted     prometheus.Counter
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploadAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kbase_upload_accepted_total",
			Help: "受理されたアップロードの合計数",
		}),
		uploadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kbase_upload_rejected_total",
			Help: "拒否されたアップロードの理由別合計数",
		}, []string{"reason"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "kbase_upload_size_bytes",
			Help: "受理されたアップロードのファイルサイズ（バイト）",
			// 1KiBから16MiBまで4倍刻み
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbase_upload_latency_seconds",
			Help:    "アップロード処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		kbCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kbase_knowledge_base_created_total",
			Help: "作成されたナレッジベースの合計数",
		}),
		kbDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kbase_knowledge_base_deleted_total",
			Help: "削除されたナレッジベースの合計数",
		}),
		docDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kbase_document_deleted_total",
			Help: "削除されたドキュメントの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kbase_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.uploadAccepted,
		c.uploadRejected,
		c.uploadBytes,
		c.uploadLatency,
		c.kbCreated,
		c.kbDeleted,
		c.docDeleted,
		c.httpStatus,
	)

	return c
}

// RecordUploadAccepted は受理されたアップロードとそのサイズを記録する。
func (c *Collector) RecordUploadAccepted(sizeBytes int64) {
	c.uploadAccepted.Inc()
	c.uploadBytes.Observe(float64(sizeBytes))
}

// RecordUploadRejected は拒否されたアップロードを理由（エラーコード）別に記録する。
func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadRejected.WithLabelValues(reason).Inc()
}

// RecordUploadLatency はアップロード処理のレイテンシを記録する。
func (c *Collector) RecordUploadLatency(duration time.Duration) {
	c.uploadLatency.Observe(duration.Seconds())
}

// RecordKnowledgeBaseCreated はナレッジベース作成を記録する。
func (c *Collector) RecordKnowledgeBaseCreated() {
	c.kbCreated.Inc()
}

// RecordKnowledgeBaseDeleted はナレッジベース削除を記録する。
func (c *Collector) RecordKnowledgeBaseDeleted() {
	c.kbDeleted.Inc()
}

// RecordDocumentDeleted はドキュメント削除を記録する。
func (c *Collector) RecordDocumentDeleted() {
	c.docDeleted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを使用しないテストや構成で使用する。
type NopCollector struct{}

func (NopCollector) RecordUploadAccepted(int64)        {}
func (NopCollector) RecordUploadRejected(string)       {}
func (NopCollector) RecordUploadLatency(time.Duration) {}
func (NopCollector) RecordKnowledgeBaseCreated()       {}
func (NopCollector) RecordKnowledgeBaseDeleted()       {}
func (NopCollector) RecordDocumentDeleted()            {}
func (NopCollector) RecordHTTPStatus(int)              {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
