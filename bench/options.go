package bench

// Option 配置Server/Client.
type Option func(o *options)

type options struct {
	metrics *Metrics
	hub     *PipeHub
}

// WithMetrics 使用指定的指标, 默认创建不注册的指标.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPipeHub 设置pipe传输使用的PipeHub.
func WithPipeHub(h *PipeHub) Option {
	return func(o *options) {
		o.hub = h
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	return o
}
