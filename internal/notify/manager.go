package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/storage"
	"main/pkg/exception"
)

// Channel delivers one alert over a single transport. Implementations must
// honor the context deadline; a slow channel never delays the others.
type Channel interface {
	Kind() enum.Channel
	Send(ctx context.Context, alert model.RiskAlert) error
}

// escalateAfter maps severity to the silence window before an unacknowledged
// alert is escalated and redelivered. Only CRITICAL and above self-escalate;
// lower severities sit until an operator acknowledges them.
var escalateAfter = map[enum.Severity]time.Duration{
	enum.SeverityCritical:  15 * time.Minute,
	enum.SeverityEmergency: 5 * time.Minute,
}

// defaultRoutes maps severity to the channel fan-out used when no override
// is configured. Higher severities add channels, never remove.
var defaultRoutes = map[enum.Severity][]enum.Channel{
	enum.SeverityLow:       {enum.ChannelLog},
	enum.SeverityMedium:    {enum.ChannelLog, enum.ChannelDesktop},
	enum.SeverityHigh:      {enum.ChannelLog, enum.ChannelDesktop, enum.ChannelTelegram},
	enum.SeverityCritical:  {enum.ChannelLog, enum.ChannelDesktop, enum.ChannelTelegram, enum.ChannelEmail},
	enum.SeverityEmergency: {enum.ChannelLog, enum.ChannelDesktop, enum.ChannelTelegram, enum.ChannelEmail, enum.ChannelWebhook},
}

// Config tunes the delivery pool.
type Config struct {
	Workers       int
	QueueCap      int
	SendTimeout   time.Duration
	SendRetries   int
	Routes        map[enum.Severity][]enum.Channel
	EscalateEvery map[enum.Severity]time.Duration
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 256
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.SendRetries < 0 {
		c.SendRetries = 0
	} else if c.SendRetries == 0 {
		c.SendRetries = 2
	}
	if c.Routes == nil {
		c.Routes = defaultRoutes
	}
	if c.EscalateEvery == nil {
		c.EscalateEvery = escalateAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Second
	}
	return c
}

type task struct {
	alertID string
	channel enum.Channel
}

// Manager owns alert lifecycle: raise, fan out to channels, escalate while
// unacknowledged, acknowledge, resolve. Delivery runs on a bounded worker
// pool so a dead channel cannot block the trading path.
type Manager struct {
	cfg      Config
	channels map[enum.Channel]Channel
	store    storage.AlertStore
	metrics  *obs.Metrics

	mu     sync.Mutex
	alerts map[string]*model.RiskAlert

	queue chan task
	now   func() time.Time
}

func NewManager(cfg Config, channels []Channel, store storage.AlertStore, metrics *obs.Metrics) *Manager {
	cfg = cfg.withDefaults()
	byKind := make(map[enum.Channel]Channel, len(channels))
	for _, ch := range channels {
		byKind[ch.Kind()] = ch
	}
	return &Manager{
		cfg:      cfg,
		channels: byKind,
		store:    store,
		metrics:  metrics,
		alerts:   make(map[string]*model.RiskAlert),
		queue:    make(chan task, cfg.QueueCap),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Run starts delivery workers and the escalation sweep.
func (m *Manager) Run(ctx context.Context) {
	for range m.cfg.Workers {
		go m.worker(ctx)
	}
	go m.sweep(ctx)
}

// Raise creates an alert and queues delivery on every routed channel.
func (m *Manager) Raise(ctx context.Context, severity enum.Severity, title, message string, scope model.StopScope) {
	if !severity.IsAvailable() {
		severity = enum.SeverityMedium
	}
	alert := model.RiskAlert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		Channels:  m.route(severity),
		Scope:     scope,
		CreatedAt: m.now(),
		Version:   1,
	}

	m.mu.Lock()
	stored := alert
	m.alerts[alert.ID] = &stored
	m.mu.Unlock()

	m.persist(ctx, alert)
	m.deliver(alert)
}

func (m *Manager) route(severity enum.Severity) []enum.Channel {
	routed := m.cfg.Routes[severity]
	out := make([]enum.Channel, 0, len(routed))
	for _, ch := range routed {
		if _, ok := m.channels[ch]; ok {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		out = append(out, enum.ChannelLog)
	}
	return out
}

// deliver queues one task per channel. A full queue drops the task for that
// channel and records the failure; other channels are unaffected.
func (m *Manager) deliver(alert model.RiskAlert) {
	for _, ch := range alert.Channels {
		select {
		case m.queue <- task{alertID: alert.ID, channel: ch}:
		default:
			m.metrics.IncNotifyFailed()
			logs.Errorf("notify queue full, dropped %s delivery of alert %s: %v",
				ch, alert.ID, exception.ErrNotifyQueueFull)
		}
	}
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.queue:
			m.send(ctx, t)
		}
	}
}

// send attempts one channel with bounded retries. Failure on one channel
// never cascades; it is logged and counted only.
func (m *Manager) send(ctx context.Context, t task) {
	alert, ok := m.Get(t.alertID)
	if !ok || alert.IsResolved {
		return
	}
	ch, ok := m.channels[t.channel]
	if !ok {
		return
	}

	var err error
	for attempt := 0; attempt <= m.cfg.SendRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
		err = ch.Send(sendCtx, alert)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
	}
	if err != nil {
		m.metrics.IncNotifyFailed()
		logs.Errorf("alert %s delivery via %s failed after %d attempts: %v",
			alert.ID, t.channel, m.cfg.SendRetries+1, err)
		return
	}

	m.metrics.IncNotifyDelivered()
	now := m.now()
	m.mu.Lock()
	if stored, ok := m.alerts[alert.ID]; ok {
		stored.LastDeliveredAt = &now
		stored.Version++
		alert = *stored
	}
	m.mu.Unlock()
	m.persist(ctx, alert)
}

// sweep escalates unacknowledged CRITICAL and EMERGENCY alerts whose
// silence window elapsed. Emergency alerts stay at emergency and simply
// redeliver; lower severities wait for an operator.
func (m *Manager) sweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, alert := range m.dueForEscalation() {
				m.escalate(ctx, alert.ID)
			}
		}
	}
}

func (m *Manager) dueForEscalation() []model.RiskAlert {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []model.RiskAlert
	for _, alert := range m.alerts {
		if alert.IsAcknowledged || alert.IsResolved {
			continue
		}
		if alert.Severity < enum.SeverityCritical {
			continue
		}
		window, ok := m.cfg.EscalateEvery[alert.Severity]
		if !ok {
			continue
		}
		since := alert.CreatedAt
		if alert.LastDeliveredAt != nil && alert.LastDeliveredAt.After(since) {
			since = *alert.LastDeliveredAt
		}
		if now.Sub(since) >= window {
			due = append(due, *alert)
		}
	}
	return due
}

func (m *Manager) escalate(ctx context.Context, id string) {
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok || alert.IsAcknowledged || alert.IsResolved {
		m.mu.Unlock()
		return
	}
	prev := alert.Severity
	alert.Severity = alert.Severity.Next()
	alert.EscalatedCount++
	alert.Channels = m.route(alert.Severity)
	alert.Version++
	out := *alert
	m.mu.Unlock()

	logs.Warnf("alert %s escalated %s -> %s (count=%d)", id, prev, out.Severity, out.EscalatedCount)
	m.persist(ctx, out)
	m.deliver(out)
}

// Acknowledge stops escalation; the alert stays open until resolved.
func (m *Manager) Acknowledge(ctx context.Context, id, by string) (model.RiskAlert, error) {
	now := m.now()
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return model.RiskAlert{}, exception.ErrNotifyUnknownAlert
	}
	if !alert.IsAcknowledged {
		alert.IsAcknowledged = true
		alert.AcknowledgedAt = &now
		alert.Version++
	}
	out := *alert
	m.mu.Unlock()

	logs.Infof("alert %s acknowledged by %s", id, by)
	m.persist(ctx, out)
	return out, nil
}

// Resolve closes the alert.
func (m *Manager) Resolve(ctx context.Context, id, by string) (model.RiskAlert, error) {
	now := m.now()
	m.mu.Lock()
	alert, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return model.RiskAlert{}, exception.ErrNotifyUnknownAlert
	}
	if !alert.IsResolved {
		alert.IsResolved = true
		alert.ResolvedAt = &now
		if !alert.IsAcknowledged {
			alert.IsAcknowledged = true
			alert.AcknowledgedAt = &now
		}
		alert.Version++
	}
	out := *alert
	m.mu.Unlock()

	logs.Infof("alert %s resolved by %s", id, by)
	m.persist(ctx, out)
	return out, nil
}

// Get returns a copy of one alert.
func (m *Manager) Get(id string) (model.RiskAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return model.RiskAlert{}, false
	}
	return *alert, true
}

// Pending returns open alerts sorted most urgent first.
func (m *Manager) Pending() []model.RiskAlert {
	now := m.now()
	m.mu.Lock()
	out := make([]model.RiskAlert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		if alert.IsResolved {
			continue
		}
		out = append(out, *alert)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UrgencyScore(now) > out[j].UrgencyScore(now)
	})
	return out
}

// All returns every tracked alert, resolved included.
func (m *Manager) All() []model.RiskAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RiskAlert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		out = append(out, *alert)
	}
	return out
}

func (m *Manager) persist(ctx context.Context, alert model.RiskAlert) {
	if m.store == nil {
		return
	}
	var err error
	if alert.Version <= 1 {
		err = m.store.SaveAlert(ctx, alert)
	} else {
		err = m.store.UpdateAlert(ctx, alert)
	}
	if err != nil {
		logs.Errorf("persist alert %s v%d: %v", alert.ID, alert.Version, err)
	}
}
