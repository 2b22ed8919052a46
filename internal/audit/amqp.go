package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dropDatabas3/trustcore/internal/observability/logger"
)

type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	// ConfirmTimeout acota la espera del ack del broker (default 5s).
	ConfirmTimeout time.Duration
	// ReconnectInterval es la espera mínima entre redials fallidos (default 5s).
	ReconnectInterval time.Duration
}

// channel es la parte de *amqp.Channel que usamos.
type channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// session es una conexión con su canal en confirm mode. closed recibe el
// error del broker cuando el canal (o la conexión) se cae.
type session struct {
	ch     channel
	conn   io.Closer
	closed <-chan *amqp.Error
}

func (s *session) close() error {
	var errs []error
	if s.ch != nil {
		errs = append(errs, s.ch.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}

type dialFunc func() (*session, error)

var (
	errPublisherClosed = errors.New("audit: amqp publisher closed")
	errReconnectWait   = errors.New("audit: amqp reconnect backoff")
)

// AMQPPublisher publica eventos como JSON persistente con publisher confirms.
// Si el broker corta la conexión, el próximo Record vuelve a conectar.
type AMQPPublisher struct {
	cfg  AMQPConfig
	dial dialFunc
	now  func() time.Time

	mu      sync.Mutex
	sess    *session
	retryAt time.Time
	shut    bool
}

// DialAMQP conecta, abre un canal en confirm mode y declara el exchange (topic, durable).
// La primera conexión es obligatoria; las siguientes son perezosas.
func DialAMQP(cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("audit: amqp url is required")
	}
	p := newAMQPPublisher(cfg, amqpDialer(cfg))
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.session(); err != nil {
		return nil, err
	}
	return p, nil
}

func amqpDialer(cfg AMQPConfig) dialFunc {
	return func() (*session, error) {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("audit: dial amqp: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("audit: open channel: %w", err)
		}
		if err := ch.Confirm(false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("audit: enable confirm mode: %w", err)
		}
		if cfg.Exchange != "" {
			if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("audit: declare exchange: %w", err)
			}
		}
		// el canal se cierra también cuando cae la conexión
		closed := ch.NotifyClose(make(chan *amqp.Error, 1))
		return &session{ch: ch, conn: conn, closed: closed}, nil
	}
}

func newAMQPPublisher(cfg AMQPConfig, dial dialFunc) *AMQPPublisher {
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = "trustcore.audit"
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	return &AMQPPublisher{cfg: cfg, dial: dial, now: time.Now}
}

// session devuelve la sesión viva o redialea. Requiere p.mu.
func (p *AMQPPublisher) session() (*session, error) {
	if p.shut {
		return nil, errPublisherClosed
	}
	if p.sess != nil {
		select {
		case err := <-p.sess.closed:
			p.drop(fmt.Errorf("channel closed: %v", err))
		default:
			return p.sess, nil
		}
	}
	if p.now().Before(p.retryAt) {
		return nil, errReconnectWait
	}
	s, err := p.dial()
	if err != nil {
		p.retryAt = p.now().Add(p.cfg.ReconnectInterval)
		return nil, err
	}
	p.retryAt = time.Time{}
	p.sess = s
	logger.L().Info("audit amqp connected", logger.Component("audit"))
	return s, nil
}

// drop descarta la sesión rota. Requiere p.mu.
func (p *AMQPPublisher) drop(reason error) {
	if p.sess == nil {
		return
	}
	_ = p.sess.close()
	p.sess = nil
	logger.L().Warn("audit amqp session lost", logger.Component("audit"), logger.Err(reason))
}

func (p *AMQPPublisher) Record(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         ev.Type,
		Headers:      amqp.Table{"tenant_id": ev.TenantID},
		Body:         body,
	}

	cctx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	dc, err := p.publish(cctx, msg)
	if err != nil {
		return fmt.Errorf("audit: publish: %w", err)
	}
	if dc == nil {
		return nil
	}
	ack, err := dc.WaitContext(cctx)
	if err != nil {
		return fmt.Errorf("audit: waiting confirm: %w", err)
	}
	if !ack {
		return errors.New("audit: message nacked by broker")
	}
	return nil
}

// publish reintenta una vez con una sesión nueva si el canal estaba cerrado.
// Un canal AMQP no es seguro para publicaciones concurrentes: todo bajo p.mu.
func (p *AMQPPublisher) publish(ctx context.Context, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; ; i++ {
		s, err := p.session()
		if err != nil {
			return nil, err
		}
		dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.Exchange, p.cfg.RoutingKey, false, false, msg)
		if errors.Is(err, amqp.ErrClosed) {
			p.drop(err)
			if i == 0 {
				continue
			}
		}
		return dc, err
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shut = true
	if p.sess == nil {
		return nil
	}
	err := p.sess.close()
	p.sess = nil
	if err != nil {
		logger.L().Warn("audit publisher close", logger.Err(err))
		return err
	}
	return nil
}
